package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

var rootCmd = &cobra.Command{
	Use:   "wxpublish",
	Short: "Publish local articles to WeChat official accounts",
	Long: `wxpublish converts local HTML, Markdown or text articles into drafts on one or
more WeChat official accounts, publishes them, and keeps a local publish history.`,
	SilenceUsage: true,
}

func init() {
	// Load .env file if present
	_ = godotenv.Load()

	setupLogging(os.Getenv("LOG_LEVEL"))
}

func setupLogging(level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(level),
	})))
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// maxprocs.Set only fails on an invalid GOMAXPROCS; the runtime default applies then.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	}))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
