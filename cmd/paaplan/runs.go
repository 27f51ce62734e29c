package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/paaplan/internal/storage"
)

func newRunsCmd(a *app) *cobra.Command {
	var (
		filter storage.Filter
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored extraction runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no storage driver configured")
			}
			defer store.Close()

			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}
			runs, err := store.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSITE\tCREATED\tPAIRS\tTIER 1\tGAPS")
			for _, r := range runs {
				pairs, tier1, gaps := 0, 0, 0
				if r.Result != nil {
					pairs = r.Result.TotalKeywords
					tier1 = len(r.Result.Tier1)
					gaps = len(r.Result.Degraded())
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.Site, r.CreatedAt.Local().Format(time.DateTime), pairs, tier1, gaps)
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter.Site, "site", "", "only runs for this site")
	f.DurationVar(&since, "since", 0, "only runs newer than this, e.g. 168h")
	f.IntVar(&filter.Limit, "limit", 20, "maximum runs to list (0 for all)")
	f.IntVar(&filter.Offset, "offset", 0, "skip this many runs")
	return cmd
}
