package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/FranksOps/paaplan/internal/extract"
	"github.com/FranksOps/paaplan/internal/metrics"
	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/report"
	"github.com/FranksOps/paaplan/internal/serp"
	"github.com/FranksOps/paaplan/internal/storage"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		siteKey   string
		keywords  []string
		locations []string
		out       string
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Collect search signals for every keyword/location pair and score them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			reg, err := a.sites()
			if err != nil {
				return err
			}
			profile, err := reg.Get(siteKey)
			if err != nil {
				return err
			}
			if len(keywords) == 0 {
				keywords = profile.SeedKeywords
			}
			if len(locations) == 0 {
				locations = profile.TargetLocations
			}
			if len(keywords) == 0 || len(locations) == 0 {
				return fmt.Errorf("site %q: need at least one keyword and one location", siteKey)
			}

			if !a.cfg.Credentialed() {
				a.logger.Warn("no SerpAPI key configured, running in degraded mode: PAA questions will be empty and scores rest on suggestions only")
			}
			fetcher, err := a.fetcher()
			if err != nil {
				return err
			}

			if a.cfg.MetricsPort > 0 {
				srv := metrics.Start(a.cfg.MetricsPort, a.logger)
				defer srv.Stop(context.Background())
			}

			pub, closePub, err := a.publisher()
			if err != nil {
				return err
			}
			defer closePub()

			run := storage.NewRun(profile.Key, nil)
			toEvents := pub.ProgressFunc(ctx, run.ID)

			spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
			spin.Suffix = " Starting extraction"
			if !quiet {
				spin.Start()
			}
			progress := func(fraction float64, label string) {
				spin.Lock()
				spin.Suffix = fmt.Sprintf(" %3.0f%% %s", fraction*100, label)
				spin.Unlock()
				toEvents(fraction, label)
			}

			ex := extract.New(extract.Config{
				Delay:   a.cfg.Delay,
				Workers: a.cfg.Workers,
				Retries: a.cfg.Retries,
			}, fetcher, a.logger)
			res := ex.ExtractAll(ctx, keywords, locations, progress)
			spin.Stop()
			run.Result = res

			if err := plan.SaveFile(out, res); err != nil {
				return err
			}
			a.logger.Info("plan saved", "path", out, "pairs", res.TotalKeywords)

			if err := a.saveRun(ctx, run); err != nil {
				a.logger.Error("run not stored", "run_id", run.ID, "err", err)
			}
			if err := pub.Extracted(ctx, run.ID, run.Site, res); err != nil {
				a.logger.Error("plan hand-off failed", "run_id", run.ID, "err", err)
			}

			if err := report.WriteText(cmd.OutOrStdout(), report.GenerateSummary(res, report.DefaultTop)); err != nil {
				return err
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return fmt.Errorf("extraction interrupted after %d of %d pairs", res.TotalKeywords, len(keywords)*len(locations))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&siteKey, "site", "trupathnj", "site profile key")
	f.StringArrayVar(&keywords, "keywords", nil, "seed keywords (default the site's seed keywords)")
	f.StringArrayVar(&locations, "locations", nil, "target locations (default the site's target locations)")
	f.StringVarP(&out, "out", "o", "plan.json", "where to write the plan")
	f.BoolVarP(&quiet, "quiet", "q", false, "no progress spinner")
	f.Duration("delay", extract.DefaultDelay, "pause between SerpAPI calls")
	f.Int("workers", 1, "pairs fetched concurrently")
	f.Int("retries", 0, "re-fetch attempts for a failed pair")
	f.Bool("autocomplete", true, "use search suggestions when no SerpAPI key is set")
	f.String("fingerprint", "chrome", "TLS fingerprint for suggestion requests: chrome, firefox, safari, random, go")
	f.String("proxies", "", "file with one proxy URL per line for suggestion requests")
	a.bind(f.Lookup("delay"), "delay")
	a.bind(f.Lookup("workers"), "workers")
	a.bind(f.Lookup("retries"), "retries")
	a.bind(f.Lookup("autocomplete"), "autocomplete")
	a.bind(f.Lookup("fingerprint"), "fingerprint")
	a.bind(f.Lookup("proxies"), "proxies_file")
	return cmd
}

// fetcher wires the signal sources: SerpAPI when a key is configured,
// otherwise search suggestions unless they are disabled.
func (a *app) fetcher() (*serp.Fetcher, error) {
	var structured, suggest serp.Provider
	switch {
	case a.cfg.Credentialed():
		s, err := serp.NewSerpAPI(serp.SerpAPIConfig{APIKey: a.cfg.SerpAPIKey})
		if err != nil {
			return nil, err
		}
		structured = s
	case a.cfg.Autocomplete:
		client, err := a.browserClient(serp.AutocompleteTimeout)
		if err != nil {
			return nil, err
		}
		suggest = serp.NewAutocomplete(serp.AutocompleteConfig{Client: client})
	}
	return serp.NewFetcher(structured, suggest, a.logger), nil
}

func (a *app) saveRun(ctx context.Context, run *storage.Run) error {
	// A cancelled extraction still gets stored.
	ctx = context.WithoutCancel(ctx)
	store, err := a.store(ctx)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	if err := store.Save(ctx, run); err != nil {
		return err
	}
	a.logger.Info("run stored", "run_id", run.ID, "driver", a.cfg.Storage.Driver)
	return nil
}
