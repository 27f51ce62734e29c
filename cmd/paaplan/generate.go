package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/paaplan/internal/generate"
	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/publish"
	"github.com/FranksOps/paaplan/internal/render"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		planPath string
		siteKey  string
		tier     int
		limit    int
		out      string
		seed     uint64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write page content for the top pages of one plan tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			res, err := plan.LoadFile(planPath)
			if err != nil {
				return err
			}
			pages, err := res.TierPages(tier)
			if err != nil {
				return err
			}
			if limit > 0 && len(pages) > limit {
				pages = pages[:limit]
			}
			if len(pages) == 0 {
				return fmt.Errorf("tier %d of %s is empty", tier, planPath)
			}

			reg, err := a.sites()
			if err != nil {
				return err
			}
			profile, err := reg.Get(siteKey)
			if err != nil {
				return err
			}

			gen, err := generate.New(generate.Config{
				APIKey: a.cfg.AnthropicKey,
				Model:  a.cfg.AnthropicModel,
			}, profile, a.logger)
			if err != nil {
				return err
			}

			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			sched := publish.NewScheduler(seed, nil)

			var drafts []generate.Draft
			for i, page := range pages {
				a.logger.Info("generating page", "keyword", page.FullKeyword, "n", i+1, "of", len(pages))
				content, err := gen.Generate(ctx, page)
				if err != nil {
					if ctx.Err() != nil {
						break
					}
					a.logger.Error("generation failed", "keyword", page.FullKeyword, "err", err)
					continue
				}
				html, err := render.HTML(profile, *content)
				if err != nil {
					a.logger.Error("render failed", "keyword", page.FullKeyword, "err", err)
					continue
				}
				drafts = append(drafts, generate.Draft{
					Site:        profile.Key,
					FullKeyword: page.FullKeyword,
					Content:     *content,
					HTML:        html,
					PublishDate: sched.Next(),
				})
			}

			if len(drafts) == 0 {
				return errors.New("no pages generated")
			}
			if err := generate.SaveDrafts(out, drafts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d of %d pages -> %s\n", len(drafts), len(pages), out)
			return ctx.Err()
		},
	}

	f := cmd.Flags()
	f.StringVar(&planPath, "plan", "plan.json", "plan file from extract")
	f.StringVar(&siteKey, "site", "trupathnj", "site profile key")
	f.IntVar(&tier, "tier", 1, "plan tier to generate (1-4)")
	f.IntVar(&limit, "limit", 5, "maximum pages to generate (0 for the whole tier)")
	f.StringVarP(&out, "out", "o", "pages.json", "where to write the drafts")
	f.Uint64Var(&seed, "seed", 0, "seed for backdated publish dates (default random)")
	f.String("model", "", "Anthropic model")
	a.bind(f.Lookup("model"), "anthropic_model")
	return cmd
}
