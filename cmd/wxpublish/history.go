package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the publish history",
	Long:  `List recent publish attempts, or every attempt for one article with --article.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var (
	historyArticle string
	historyLimit   int
)

func init() {
	historyCmd.Flags().StringVar(&historyArticle, "article", "", "only show this article")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of records")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	if historyArticle != "" {
		status, err := a.service.ArticleStatus(ctx, historyArticle)
		if err != nil {
			return fmt.Errorf("article status: %w", err)
		}
		fmt.Fprintf(out, "%s: %s\n\n", historyArticle, status)
	}

	records, err := a.service.History(ctx, historyArticle, historyLimit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "no publish records")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tARTICLE\tACCOUNT\tAPPID\tSTATUS\tKIND\tURL")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t****%s\t%s\t%s\t%s\n",
			rec.CreatedAt.Local().Format(time.DateTime), rec.ArticlePath, rec.Account,
			rec.AppIDSuffix, rec.Status, rec.Kind, rec.URL)
	}
	return w.Flush()
}
