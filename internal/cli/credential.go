package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nhle/kanban/internal/credential"
)

func credentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage backend secrets in the system keyring",
	}
	cmd.AddCommand(credentialSetCmd(), credentialDeleteCmd())
	return cmd
}

func credentialSetCmd() *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret (" + strings.Join(credential.Keys, ", ") + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !credential.Known(key) {
				return fmt.Errorf("unknown credential %q", key)
			}
			if value == "" {
				var err error
				if in := cmd.InOrStdin(); isTerminal(in) {
					value, err = promptSecret(key)
				} else {
					value, err = readPipedSecret(in)
				}
				if err != nil {
					return err
				}
			}
			if value == "" {
				return fmt.Errorf("no value given for %s", key)
			}
			s, err := openSecrets()
			if err != nil {
				return err
			}
			if err := s.Set(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", key)
			return nil
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "Secret value; prompted for, or read from piped stdin, when omitted")
	return cmd
}

var isTerminal = func(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// promptSecret asks for the secret without echoing it. Pasted service
// account JSON loses its line breaks, which keeps it valid JSON.
var promptSecret = func(key string) (string, error) {
	var value string
	err := huh.NewInput().
		Title("Value for " + key).
		EchoMode(huh.EchoModePassword).
		Value(&value).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", key)
			}
			return nil
		}).
		Run()
	if err != nil {
		return "", fmt.Errorf("prompting for %s: %w", key, err)
	}
	return strings.TrimSpace(value), nil
}

// readPipedSecret reads all of r so multi-line JSON can be piped in.
func readPipedSecret(r io.Reader) (string, error) {
	var b strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		b.WriteString(sc.Text())
		b.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("reading secret from stdin: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

func credentialDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !credential.Known(key) {
				return fmt.Errorf("unknown credential %q", key)
			}
			s, err := openSecrets()
			if err != nil {
				return err
			}
			if err := s.Delete(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
			return nil
		},
	}
}
