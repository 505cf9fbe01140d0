package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iniwap/AIWriteX/internal/application"
)

var publishCmd = &cobra.Command{
	Use:   "publish [flags] <article>...",
	Short: "Publish articles to the configured accounts",
	Long: `Publish each article to every configured account, or only to the accounts
selected with --account (zero-based, repeatable). Without --cover a cover image is
generated, falling back to the bundled default.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPublish,
}

var (
	publishAccounts    []int
	publishCover       string
	publishMetricsFile string
)

func init() {
	publishCmd.Flags().IntSliceVar(&publishAccounts, "account", nil, "account index to publish to (repeatable)")
	publishCmd.Flags().StringVar(&publishCover, "cover", "", "cover image path or URL")
	publishCmd.Flags().StringVar(&publishMetricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.ValidateForPublishing(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	summary, err := a.service.PublishBatch(ctx, application.BatchRequest{
		ArticlePaths: args,
		Accounts:     publishAccounts,
		CoverPath:    publishCover,
	})
	if err != nil {
		return err
	}

	printSummary(cmd, summary)

	if publishMetricsFile != "" {
		if err := a.recorder.WriteTextfile(publishMetricsFile); err != nil {
			slog.Error("failed to write metrics file", "path", publishMetricsFile, "error", err)
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d publishes failed", summary.Failed, len(summary.Items))
	}
	return nil
}

func printSummary(cmd *cobra.Command, summary application.BatchSummary) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ARTICLE\tACCOUNT\tSTATUS\tPUBLISH ID\tURL\tMESSAGE")
	for _, item := range summary.Items {
		out := item.Outcome
		message := out.Message
		if out.PlatformMessage != "" {
			message += " (" + out.PlatformMessage + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ArticlePath, item.Account, out.Result.Status, out.Result.PublishID, out.Result.URL, message)
	}
	_ = w.Flush()

	fmt.Fprintf(cmd.OutOrStdout(), "\nrun %s: %d succeeded, %d failed\n", summary.RunID, summary.Succeeded, summary.Failed)
}
