package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/class1/graduate/internal/utils"
	"github.com/class1/graduate/pkg/prefetch"
	"github.com/class1/graduate/pkg/session"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Downloads every photo of one person's timeline, or of everybody's, into the cache.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'graduate fetch --help'", args[0])
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.hold(false); err != nil {
			return err
		}

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = viper.GetInt("concurrency")
		}

		ctx := cmd.Context()
		subjects := []int{}
		if subject, _ := cmd.Flags().GetInt("subject"); subject > 0 {
			subjects = append(subjects, subject)
		} else {
			roster, err := session.Roster(ctx, e.cfg)
			if err != nil {
				return err
			}
			for _, s := range roster {
				subjects = append(subjects, s.ID)
			}
		}

		seen := map[string]bool{}
		var failed int
		for _, id := range subjects {
			cfg := e.cfg
			cfg.Subject = id
			cfg.NoPrefetch = true
			cfg.Log = utils.SubjectLogger(id)

			s, err := session.Open(ctx, cfg)
			if err != nil {
				return err
			}

			var paths []string
			for _, p := range prefetch.Paths(s.Timeline()) {
				if !seen[p] {
					seen[p] = true
					paths = append(paths, p)
				}
			}
			utils.Log.WithField("session", s.ID).Infof("Fetching %d photos for %s", len(paths), s.Subject.Name)

			result := prefetch.Warm(ctx, prefetch.WarmConfig{
				Paths:       paths,
				Resolver:    s.Resolver(),
				Concurrency: concurrency,
				Log:         cfg.Log,
				OnAssetDone: func(path string, err error) {
					if err == nil {
						utils.Log.Debugf("Fetched %s", path)
					}
				},
			})
			failed += len(result.Errors)
			s.Close()

			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		if failed > 0 {
			utils.Log.Warnf("%d photos could not be fetched, run fetch again to retry them", failed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cached %d photos under %s\n", len(seen)-failed, e.root)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().Int("subject", 0, "Only fetch the timeline of this person (default: everybody)")
	fetchCmd.Flags().Int("concurrency", 0, "Number of concurrent downloads (default: the `concurrency` config key)")
}
