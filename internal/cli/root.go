package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/kanban/internal/app"
	"github.com/nhle/kanban/internal/model"
)

// Execute runs the kanban command line.
func Execute() error {
	return NewRoot().Execute()
}

var runTUI = func(m app.Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	backend    string
	envFile    string
}

// load reads the env file and the config, then applies flag overrides.
func (o *globalOptions) load() (*model.AppConfig, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", o.envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := model.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.backend != "" {
		cfg.Backend = o.backend
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// NewRoot builds the root command and its subcommands.
func NewRoot() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:          "kanban",
		Short:        "Live, multi-writer kanban board for the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logFile, err := setupLogging(cfg.Log)
			if err != nil {
				return err
			}
			defer closeQuietly(logFile)

			b, err := openBackend(cmd.Context(), cfg, log.StandardLogger())
			if err != nil {
				return err
			}
			defer closeQuietly(b)

			log.WithField("backend", cfg.Backend).Info("starting board")
			m := app.New(app.Config{
				Gateway:         b,
				Backend:         cfg.Backend,
				TasksCollection: cfg.Collections.Tasks,
				UsersCollection: cfg.Collections.Users,
				WriteTimeout:    cfg.Display.WriteTimeout(),
				Logger:          log.StandardLogger(),
			})
			defer m.Shutdown()
			return runTUI(m)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "Path to the config file")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "Override the backend (memory, sqlite, redis, firestore)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment variables from this file instead of ./.env")

	root.AddCommand(
		credentialCmd(),
		tasksCmd(opts),
		configCmd(opts),
	)
	return root
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		log.WithError(err).Warn("close failed")
	}
}
