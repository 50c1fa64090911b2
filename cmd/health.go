package cmd

import (
	"fmt"

	"chatctl/internal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backends are reachable",
	Long: `Ping the orchestrator, the document backend and the analytics backend
and report which ones respond.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}

		type check struct {
			name string
			base string
			ping func() error
		}
		checks := []check{
			{"orchestrator", app.cfg.APIBase, func() error { return app.api.Health(cmd.Context()) }},
			{"documents", app.cfg.DocqaBase, func() error { return app.docqa.Health(cmd.Context()) }},
			{"analytics", app.cfg.AnalyticsBase, func() error { return app.analytics.Health(cmd.Context()) }},
		}

		results := make([]error, len(checks))
		g, _ := errgroup.WithContext(cmd.Context())
		for i, c := range checks {
			g.Go(func() error {
				results[i] = c.ping()
				return nil
			})
		}
		_ = g.Wait()

		failures := 0
		for i, c := range checks {
			if results[i] != nil {
				internal.PrintError(fmt.Sprintf("%s (%s): %v", c.name, c.base, results[i]))
				failures++
				continue
			}
			internal.PrintSuccess(fmt.Sprintf("%s (%s)", c.name, c.base))
		}
		if failures > 0 {
			return fmt.Errorf("%d of %d backends unreachable", failures, len(checks))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
