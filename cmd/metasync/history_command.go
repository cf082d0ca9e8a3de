package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"metasync/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past sync runs, or the directories of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				dirs, err := store.Directories(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Run %s on %s\n", run.ID, run.LibraryRoot)
				if len(dirs) == 0 {
					fmt.Fprintln(out, "No directories recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]column{
						{title: "Directory"},
						{title: "Outcome"},
						{title: "Key", numeric: true},
						{title: "Duration", numeric: true},
						{title: "Error", maxWidth: 60},
					},
					directoryRows(dirs),
					nil,
				))
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]column{
					{title: "Run"},
					{title: "Started"},
					{title: "Duration", numeric: true},
					{title: "Written", numeric: true},
					{title: "Unchanged", numeric: true},
					{title: "Skipped", numeric: true},
					{title: "Failed", numeric: true},
					{title: "Library"},
				},
				runRows(runs),
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}

func runRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "running"
		if run.Finished() {
			duration = run.Duration().Round(time.Second).String()
		}
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			strconv.Itoa(run.Written),
			strconv.Itoa(run.Unchanged),
			strconv.Itoa(run.Skipped),
			strconv.Itoa(run.Failed),
			run.LibraryRoot,
		})
	}
	return rows
}

func directoryRows(dirs []history.Directory) [][]string {
	rows := make([][]string, 0, len(dirs))
	for _, d := range dirs {
		key := ""
		if d.SeriesKey != 0 {
			key = strconv.FormatInt(d.SeriesKey, 10)
		}
		rows = append(rows, []string{
			d.Path,
			d.Outcome,
			key,
			d.Duration.Round(time.Millisecond).String(),
			d.ErrorMessage,
		})
	}
	return rows
}
