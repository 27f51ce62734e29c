package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/report"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		planPath string
		runID    string
		format   string
		top      int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a plan file or a stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res *plan.Result
			switch {
			case planPath != "" && runID != "":
				return errors.New("use either --plan or --run, not both")
			case runID != "":
				store, err := a.store(cmd.Context())
				if err != nil {
					return err
				}
				if store == nil {
					return errors.New("--run needs a configured storage driver")
				}
				defer store.Close()
				run, err := store.Get(cmd.Context(), runID)
				if err != nil {
					return fmt.Errorf("run %s: %w", runID, err)
				}
				res = run.Result
			default:
				if planPath == "" {
					planPath = "plan.json"
				}
				r, err := plan.LoadFile(planPath)
				if err != nil {
					return err
				}
				res = r
			}
			return report.Write(cmd.OutOrStdout(), format, report.GenerateSummary(res, top))
		},
	}

	f := cmd.Flags()
	f.StringVar(&planPath, "plan", "", "plan file (default plan.json)")
	f.StringVar(&runID, "run", "", "stored run ID")
	f.StringVarP(&format, "format", "f", "text", "output format: text, json, html")
	f.IntVar(&top, "top", report.DefaultTop, "highest-priority pages to list")
	return cmd
}
