package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"chatctl/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	dashboardFrom string
	dashboardTo   string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the admin usage dashboard",
	Long: `Show the admin usage dashboard: totals, daily activity, average
conversation duration, activity heatmap and top keywords.

Panels are fetched concurrently; a panel whose backend call fails is
shown as unavailable without failing the rest.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireAdmin(); err != nil {
			return err
		}

		from, to := dashboardRange()

		var (
			stats    *internal.AdminStats
			signups  []internal.DayCount
			msgs     []internal.DayCount
			duration *internal.StatValue
			heatmap  []internal.HeatCell
			keywords []internal.KeywordCount
		)

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			var err error
			if stats, err = app.api.Stats(ctx); err != nil {
				internal.LogWarn("stats panel unavailable: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if signups, err = app.api.SignupsPerDay(ctx, from, to); err != nil {
				internal.LogWarn("signups panel unavailable: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if msgs, err = app.api.MsgsPerDay(ctx, from, to); err != nil {
				internal.LogWarn("messages panel unavailable: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if duration, err = app.api.AvgConvDuration(ctx, from, to); err != nil {
				internal.LogWarn("duration panel unavailable: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if heatmap, err = app.api.Heatmap(ctx, from, to); err != nil {
				internal.LogWarn("heatmap panel unavailable: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if keywords, err = app.api.TopKeywords(ctx, from, to, 10); err != nil {
				internal.LogWarn("keywords panel unavailable: %v", err)
			}
			return nil
		})
		_ = g.Wait()

		fmt.Println(headerStyle.Render(fmt.Sprintf("📊 Dashboard %s → %s", from, to)))
		fmt.Println()

		displayTotals(stats, duration)
		displayDaily("Signups per day", signups)
		displayDaily("Messages per day", msgs)
		displayHeatmap(heatmap)
		displayKeywords(keywords)
		return nil
	},
}

func dashboardRange() (string, string) {
	const layout = "2006-01-02"
	to := dashboardTo
	if to == "" {
		to = time.Now().Format(layout)
	}
	from := dashboardFrom
	if from == "" {
		from = time.Now().AddDate(0, 0, -30).Format(layout)
	}
	return from, to
}

func displayTotals(stats *internal.AdminStats, duration *internal.StatValue) {
	if stats == nil {
		fmt.Println(dateStyle.Render("Totals unavailable"))
		fmt.Println()
		return
	}
	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(w, "%s\t%s\t\n", titleStyle.Render("Users"), countStyle.Render(fmt.Sprintf("%d", stats.Users)))
	_, _ = fmt.Fprintf(w, "%s\t%s\t\n", titleStyle.Render("Conversations"), countStyle.Render(fmt.Sprintf("%d", stats.Conversations)))
	_, _ = fmt.Fprintf(w, "%s\t%s\t\n", titleStyle.Render("Messages"), countStyle.Render(fmt.Sprintf("%d", stats.Messages)))
	if duration != nil {
		_, _ = fmt.Fprintf(w, "%s\t%s\t\n", titleStyle.Render("Avg duration"), countStyle.Render(fmt.Sprintf("%.1f min", duration.Value)))
	}
	_ = w.Flush()
	fmt.Println()
}

func displayDaily(label string, rows []internal.DayCount) {
	if len(rows) == 0 {
		return
	}
	fmt.Println(titleStyle.Render(label))

	max := int64(1)
	for _, r := range rows {
		if r.Count > max {
			max = r.Count
		}
	}
	for _, r := range rows {
		bar := strings.Repeat("█", int(r.Count*30/max))
		fmt.Printf("  %s %s %d\n", dateStyle.Render(r.Date), countStyle.Render(bar), r.Count)
	}
	fmt.Println()
}

var dowLabels = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func displayHeatmap(cells []internal.HeatCell) {
	if len(cells) == 0 {
		return
	}
	fmt.Println(titleStyle.Render("Activity heatmap"))

	grid := make(map[int]map[int]int64)
	var max int64 = 1
	for _, c := range cells {
		if grid[c.Dow] == nil {
			grid[c.Dow] = make(map[int]int64)
		}
		grid[c.Dow][c.Hour] = c.Count
		if c.Count > max {
			max = c.Count
		}
	}

	shades := []string{" ", "░", "▒", "▓", "█"}
	for dow := 0; dow < 7; dow++ {
		var sb strings.Builder
		for hour := 0; hour < 24; hour++ {
			count := grid[dow][hour]
			idx := int(count * int64(len(shades)-1) / max)
			sb.WriteString(shades[idx])
		}
		fmt.Printf("  %s %s\n", dateStyle.Render(dowLabels[dow]), sb.String())
	}
	fmt.Println(dateStyle.Render("      0h" + strings.Repeat(" ", 19) + "23h"))
	fmt.Println()
}

func displayKeywords(rows []internal.KeywordCount) {
	if len(rows) == 0 {
		return
	}
	fmt.Println(titleStyle.Render("Top keywords"))
	for _, r := range rows {
		fmt.Printf("  %s %s\n", countStyle.Render(fmt.Sprintf("%4d", r.Count)), r.Word)
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringVar(&dashboardFrom, "from", "", "Start date YYYY-MM-DD (default 30 days ago)")
	dashboardCmd.Flags().StringVar(&dashboardTo, "to", "", "End date YYYY-MM-DD (default today)")
}
