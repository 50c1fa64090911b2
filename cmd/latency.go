package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"chatctl/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	latencyHours    int
	latencySummary  bool
	latencyForecast bool
	latencyHorizon  int
	latencyBucket   int
)

var latencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Show backend latency metrics (admin)",
	Long: `Show backend latency metrics over a time window.

The default view lists p50/p90/avg per bucket. --summary adds a trend
analysis against the configured SLO; --forecast predicts the risk of
breaching it over the next hours.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireAdmin(); err != nil {
			return err
		}

		switch {
		case latencySummary:
			return runLatencySummary(cmd, app)
		case latencyForecast:
			return runLatencyForecast(cmd, app)
		default:
			return runLatencyWindow(cmd, app)
		}
	},
}

func runLatencyWindow(cmd *cobra.Command, app *appContext) error {
	to := time.Now()
	from := to.Add(-time.Duration(latencyHours) * time.Hour)

	var rows []internal.LatencyRow
	err := internal.ShowProgress(cmd.Context(), "Fetching latency metrics...", func() error {
		var err error
		rows, err = app.analytics.FetchLatencyWindow(cmd.Context(), from, to)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to fetch latency metrics: %w", err)
	}

	if len(rows) == 0 {
		fmt.Println(headerStyle.Render("⏱  No latency data in the window"))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("⏱  Latency, last %dh (%d buckets)", latencyHours, len(rows))))
	fmt.Println()

	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, titleStyle.Render("Time")+"\t"+titleStyle.Render("p50")+"\t"+titleStyle.Render("p90")+"\t"+titleStyle.Render("avg")+"\t"+titleStyle.Render("Samples")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 80))
	for _, r := range rows {
		p90 := fmt.Sprintf("%.3fs", r.P90)
		if r.P90 > app.cfg.SLOP90 {
			p90 = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(p90)
		} else {
			p90 = countStyle.Render(p90)
		}
		_, _ = fmt.Fprintf(w, "%s\t%.3fs\t%s\t%.3fs\t%d\t\n",
			dateStyle.Render(r.Time().Format("Jan 02 15:04")), r.P50, p90, r.Avg, r.Samples)
	}
	_ = w.Flush()
	return nil
}

func runLatencySummary(cmd *cobra.Command, app *appContext) error {
	to := time.Now()
	from := to.Add(-time.Duration(latencyHours) * time.Hour)

	summary, err := app.analytics.Summary(cmd.Context(), from, to, app.cfg.SLOP90)
	if err != nil {
		return fmt.Errorf("failed to fetch latency summary: %w", err)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("⏱  Latency summary, last %dh", latencyHours)))
	fmt.Println()

	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(w, "%s\t%s\t\n", titleStyle.Render("p90 min/median/max"),
		countStyle.Render(fmt.Sprintf("%.3fs / %.3fs / %.3fs", summary.P90Min, summary.P90Median, summary.P90Max)))
	_, _ = fmt.Fprintf(w, "%s\t%s\t\n", titleStyle.Render("Trend"),
		fmt.Sprintf("%s (%.4f s/h)", summary.Trend, summary.Slope))
	_, _ = fmt.Fprintf(w, "%s\t%d\t\n", titleStyle.Render("Anomalies"), summary.Anomalies)
	_, _ = fmt.Fprintf(w, "%s\t%d\t\n", titleStyle.Render("Points"), summary.Points)
	_, _ = fmt.Fprintf(w, "%s\t%.2fs\t\n", titleStyle.Render("SLO p90"), summary.SLOP90)
	_ = w.Flush()

	if summary.SummaryText != "" {
		fmt.Println()
		fmt.Println(summary.SummaryText)
	}
	return nil
}

func runLatencyForecast(cmd *cobra.Command, app *appContext) error {
	forecast, err := app.analytics.ForecastRisk(cmd.Context(), latencyHorizon, latencyBucket, 0.3, app.cfg.SLOP90)
	if err != nil {
		return fmt.Errorf("failed to fetch latency forecast: %w", err)
	}

	label := fmt.Sprintf("⏱  Risk forecast, next %d min (SLO p90 %.2fs)", latencyHorizon, forecast.SLOP90)
	fmt.Println(headerStyle.Render(label))
	fmt.Println()

	if forecast.Alert {
		internal.PrintWarning(fmt.Sprintf("SLO breach likely (max probability %.0f%%)", forecast.OverallMaxProb*100))
		fmt.Println()
	}

	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, titleStyle.Render("Time")+"\t"+titleStyle.Render("p90 pred")+"\t"+titleStyle.Render("Range")+"\t"+titleStyle.Render("P(breach)")+"\t"+titleStyle.Render("Risk")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 85))
	for _, p := range forecast.Points {
		risk := string(p.Risk)
		switch p.Risk {
		case internal.RiskHigh:
			risk = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Render(risk)
		case internal.RiskMedium:
			risk = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(risk)
		default:
			risk = countStyle.Render(risk)
		}
		_, _ = fmt.Fprintf(w, "%s\t%.3fs\t%.3f–%.3fs\t%.0f%%\t%s\t\n",
			dateStyle.Render(p.TS), p.P90Pred, p.Low, p.High, p.ProbExceedSLO*100, risk)
	}
	_ = w.Flush()
	return nil
}

func init() {
	rootCmd.AddCommand(latencyCmd)
	latencyCmd.Flags().IntVar(&latencyHours, "hours", 24, "Window size in hours")
	latencyCmd.Flags().BoolVar(&latencySummary, "summary", false, "Show the trend summary")
	latencyCmd.Flags().BoolVar(&latencyForecast, "forecast", false, "Show the SLO risk forecast")
	latencyCmd.Flags().IntVar(&latencyHorizon, "horizon", 60, "Forecast horizon in minutes")
	latencyCmd.Flags().IntVar(&latencyBucket, "bucket", 5, "Forecast bucket size in minutes")
}
