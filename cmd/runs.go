package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/waste-risk/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored scoring runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("runs: store.driver is not set")
		}
		defer st.Close() //nolint:errcheck
		return runRuns(ctx, st, runsLimit, cmd.OutOrStdout())
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(ctx context.Context, st store.Store, limit int, w io.Writer) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	return printJSON(w, runs)
}
