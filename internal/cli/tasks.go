package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/kanban/internal/board"
	"github.com/nhle/kanban/internal/gateway"
	"github.com/nhle/kanban/internal/model"
)

const snapshotTimeout = 15 * time.Second

type columnJSON struct {
	Status model.Status `json:"status"`
	Label  string       `json:"label"`
	Tasks  []model.Task `json:"tasks"`
}

func tasksCmd(opts *globalOptions) *cobra.Command {
	var filters model.FilterSet
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Print the board once, column by column",
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

			tasks, err := readSnapshot(cmd.Context(), b, cfg.Collections.Tasks)
			if err != nil {
				return err
			}
			if asJSON {
				return writeColumnsJSON(cmd.OutOrStdout(), tasks, filters)
			}
			writeColumns(cmd.OutOrStdout(), tasks, filters)
			return nil
		},
	}
	cmd.Flags().StringVar(&filters.Priority, "priority", "", "Only show this priority")
	cmd.Flags().StringVar(&filters.Type, "type", "", "Only show this type (FE, BE, BOTH)")
	cmd.Flags().StringVar(&filters.AssigneeID, "assignee", "", "Only show tasks assigned to this user id")
	cmd.Flags().StringVar(&filters.Category, "category", "", "Only show this category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

// readSnapshot subscribes, takes the first snapshot and releases the feed.
func readSnapshot(ctx context.Context, gw gateway.Gateway, collection string) ([]model.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	docsCh := make(chan []gateway.Document, 1)
	errCh := make(chan error, 1)
	sub, err := gw.Subscribe(ctx, collection, model.FieldOrder,
		func(docs []gateway.Document) {
			select {
			case docsCh <- docs:
			default:
			}
		},
		func(err error) {
			select {
			case errCh <- err:
			default:
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", collection, err)
	}
	defer sub.Unsubscribe()

	select {
	case docs := <-docsCh:
		return board.TasksFromDocuments(docs), nil
	case err := <-errCh:
		return nil, fmt.Errorf("reading %s: %w", collection, err)
	case <-ctx.Done():
		return nil, errors.New("timed out waiting for the first snapshot")
	}
}

func writeColumns(w io.Writer, tasks []model.Task, filters model.FilterSet) {
	for i, status := range model.Columns {
		col := board.ColumnTasks(tasks, filters, status)
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", status.Label(), len(col))
		for _, t := range col {
			assignee := t.Assignee()
			if assignee == "" {
				assignee = "-"
			}
			fmt.Fprintf(w, "  %-8s %-5s %-10s %s\t%s\n", t.Priority.Label(), t.Type.Label(), assignee, t.Title, t.ID)
		}
	}
}

func writeColumnsJSON(w io.Writer, tasks []model.Task, filters model.FilterSet) error {
	out := make([]columnJSON, 0, len(model.Columns))
	for _, status := range model.Columns {
		col := board.ColumnTasks(tasks, filters, status)
		if col == nil {
			col = []model.Task{}
		}
		out = append(out, columnJSON{Status: status, Label: status.Label(), Tasks: col})
	}
	data, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding board: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
