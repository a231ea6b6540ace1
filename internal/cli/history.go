package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"imagebatch/internal/adapter"
)

func newHistoryCmd(st *state) *cobra.Command {
	var (
		user  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded batches of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := adapter.Open(cmd.Context(), st.cfg, st.logger)
			if err != nil {
				return err
			}
			defer p.Close()
			if p.History == nil {
				return errors.New("history is not recorded with PERSISTENCE_DRIVER=none")
			}
			recs, err := p.History.ListByUser(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tMODE\tRESULTS\tCOST\tDURATION\tCREATED")
			for _, r := range recs {
				d := "-"
				if r.Duration != nil {
					d = r.Duration.Round(time.Millisecond).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
					r.JobID, r.Mode, r.ResultsCount, r.TotalCost, d, r.CreatedAt.Local().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&user, "user", "cli", "user id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of batches")
	return cmd
}
