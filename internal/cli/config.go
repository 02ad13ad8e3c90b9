package cli

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/nhle/kanban/internal/model"
)

func configCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(configInitCmd(opts), configShowCmd(opts))
	return cmd
}

func configInitCmd(opts *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := model.SaveConfig(opts.configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func configShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Redis.Password != "" {
				cfg.Redis.Password = "********"
			}
			data, err := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
