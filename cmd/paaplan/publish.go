package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/paaplan/internal/generate"
	"github.com/FranksOps/paaplan/internal/publish"
	"github.com/FranksOps/paaplan/internal/render"
	"github.com/FranksOps/paaplan/internal/site"
)

func newPublishCmd(a *app) *cobra.Command {
	var (
		pagesPath string
		limit     int
		dryRun    bool
		spacing   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Post generated pages to each site's WordPress",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			drafts, err := generate.LoadDrafts(pagesPath)
			if err != nil {
				return err
			}
			if limit > 0 && len(drafts) > limit {
				drafts = drafts[:limit]
			}

			if dryRun {
				return preview(cmd.OutOrStdout(), drafts)
			}

			reg, err := a.sites()
			if err != nil {
				return err
			}

			var published, skipped, failed int
			for _, group := range bySite(drafts) {
				profile, err := reg.Get(group[0].Site)
				if err != nil {
					return err
				}
				wp, err := publish.NewWordPress(a.wordPressConfig(profile), a.logger)
				if err != nil {
					return fmt.Errorf("site %s: %w", profile.Key, err)
				}

				inv := a.inventory(cmd, a.wordPressConfig(profile).URL)
				batch := &publish.Batch{Poster: wp, Inventory: inv, Spacing: spacing, Logger: a.logger}
				outcomes := batch.Run(ctx, group)

				for _, o := range outcomes {
					if o.Result != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "published %s -> %s\n", o.Slug, o.Result.Link)
					}
				}
				p, s, f := publish.Tally(outcomes)
				published, skipped, failed = published+p, skipped+s, failed+f
				if ctx.Err() != nil {
					break
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Published %d, skipped %d, failed %d\n", published, skipped, failed)
			if failed > 0 {
				return fmt.Errorf("%d pages failed to publish", failed)
			}
			return ctx.Err()
		},
	}

	f := cmd.Flags()
	f.StringVar(&pagesPath, "pages", "pages.json", "drafts file from generate")
	f.IntVar(&limit, "limit", 10, "maximum pages to publish (0 for all)")
	f.BoolVar(&dryRun, "dry-run", false, "print each page's outline instead of posting")
	f.DurationVar(&spacing, "spacing", publish.DefaultSpacing, "pause between posts")
	return cmd
}

// wordPressConfig takes the site's own credentials, falling back to the
// configured defaults field by field.
func (a *app) wordPressConfig(p site.Profile) publish.WordPressConfig {
	wp := publish.WordPressConfig{URL: p.WordPress.URL, User: p.WordPress.User, Password: p.WordPress.Password}
	if wp.URL == "" {
		wp.URL = a.cfg.WordPress.URL
	}
	if wp.User == "" {
		wp.User = a.cfg.WordPress.User
	}
	if wp.Password == "" {
		wp.Password = a.cfg.WordPress.Password
	}
	return wp
}

// inventory lists the pages a site already has. Discovery failures leave
// the inventory empty so every draft is attempted.
func (a *app) inventory(cmd *cobra.Command, siteURL string) *publish.Inventory {
	client, err := a.browserClient(30 * time.Second)
	if err != nil {
		a.logger.Warn("inventory skipped", "site", siteURL, "err", err)
		return nil
	}
	inv, err := publish.NewDiscoverer(client, "", a.logger).Discover(cmd.Context(), siteURL)
	if err != nil {
		a.logger.Warn("inventory discovery failed", "site", siteURL, "err", err)
		return nil
	}
	return inv
}

// bySite groups drafts by site key, keeping first-seen order.
func bySite(drafts []generate.Draft) [][]generate.Draft {
	idx := map[string]int{}
	var groups [][]generate.Draft
	for _, d := range drafts {
		i, ok := idx[d.Site]
		if !ok {
			i = len(groups)
			idx[d.Site] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], d)
	}
	return groups
}

func preview(w io.Writer, drafts []generate.Draft) error {
	for _, d := range drafts {
		hs, err := render.Headings(d.HTML)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Content.Slug, err)
		}
		fmt.Fprintf(w, "[%s] /%s/ dated %s\n", d.Site, d.Content.Slug, d.PublishDate.Format(time.DateOnly))
		fmt.Fprint(w, render.Outline(hs))
	}
	fmt.Fprintf(w, "%d pages, nothing posted\n", len(drafts))
	return nil
}
