package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"viralbot/internal/clock"
	"viralbot/internal/domain"
	"viralbot/internal/platform/x"
	"viralbot/internal/service"
	"viralbot/internal/storage/ledger"
)

func newReportCmd(configPath *string) *cobra.Command {
	var windowDays int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the engagement report",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, db, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := ledger.New(db).Report(cmd.Context(), windowDays)
			if err != nil {
				return err
			}

			renderReport(os.Stdout, report)
			return nil
		},
	}
	cmd.Flags().IntVar(&windowDays, "window", 7, "trailing window in days")
	return cmd
}

func newRefreshCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch engagement metrics for recent posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, db, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			platform := x.New(x.Config{
				APIKey:       cfg.Platform.APIKey,
				APISecret:    cfg.Platform.APISecret,
				AccessToken:  cfg.Platform.AccessToken,
				AccessSecret: cfg.Platform.AccessSecret,
				BearerToken:  cfg.Platform.BearerToken,
				Timeout:      cfg.Platform.Timeout,
			}, logger)

			metrics := service.NewMetricsService(
				ledger.New(db), platform, nil, clock.Real{},
				service.MetricsConfig{
					WindowDays: cfg.Metrics.WindowDays,
					FetchDelay: cfg.Metrics.FetchDelay,
				},
				logger,
			)

			updated, err := metrics.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("updated %d posts\n", updated)
			return nil
		},
	}
}

func renderReport(w io.Writer, r *domain.Report) {
	rule := strings.Repeat("=", 70)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "ENGAGEMENT REPORT")
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w, "\nOVERALL")
	fmt.Fprintf(w, "Total posts:    %d\n", r.TotalPosts)
	fmt.Fprintf(w, "Total views:    %d\n", r.TotalViews)
	fmt.Fprintf(w, "Total likes:    %d\n", r.TotalLikes)
	fmt.Fprintf(w, "Total retweets: %d\n", r.TotalRetweets)
	fmt.Fprintf(w, "Avg engagement: %.2f%%\n", r.AvgEngagement)
	if r.TotalPosts > 0 {
		fmt.Fprintf(w, "Avg views/post: %d\n", r.TotalViews/r.TotalPosts)
	}

	fmt.Fprintf(w, "\nTOP %d POSTS\n", len(r.TopPosts))
	for i, p := range r.TopPosts {
		fmt.Fprintf(w, "%d. %s\n", i+1, firstLine(p.Caption, 55))
		fmt.Fprintf(w, "   %d views | %d likes | %d retweets | %.2f%%\n",
			p.Impressions, p.Likes, p.Retweets, p.EngagementRate)
	}

	fmt.Fprintln(w, "\nBEST POSTING HOURS")
	for _, h := range r.BestHours {
		fmt.Fprintf(w, "  %02d:00 -> %.2f%% engagement | %.0f avg views\n",
			h.Hour, h.AvgEngagement, h.AvgImpressions)
	}

	fmt.Fprintln(w, "\nBEST CONTENT TYPE")
	for _, t := range r.ContentTypes {
		fmt.Fprintf(w, "  %s: %.2f%% engagement | %.0f avg views (%d posts)\n",
			t.ContentType, t.AvgEngagement, t.AvgImpressions, t.Posts)
	}

	fmt.Fprintln(w, "\nBEST CAPTION STYLE")
	for _, c := range r.CaptionTypes {
		fmt.Fprintf(w, "  %s: %.2f%% engagement (%d posts)\n",
			c.CaptionType, c.AvgEngagement, c.Posts)
	}

	fmt.Fprintf(w, "\n%d-DAY TREND\n", r.WindowDays)
	for _, d := range r.DailyTrend {
		fmt.Fprintf(w, "  %s: %d posts | %d views | %d likes | %.2f%%\n",
			d.Day.Format("Mon 01/02"), d.Posts, d.Views, d.Likes, d.AvgEngagement)
	}

	fmt.Fprintln(w, "\n"+rule)
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}
