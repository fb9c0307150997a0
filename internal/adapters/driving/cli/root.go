// Package cli provides the command-line interface for DiagnoBot.
package cli

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services used by the commands. Set by the composition root before Execute.
var (
	settingsService  driving.SettingsService
	indexService     driving.IndexService
	answerService    driving.AnswerService
	retrievalService driving.RetrievalService
	sourceWatcher    driven.SourceWatcher
	sourcePath       string
)

var verbose bool

// retryPolicy builds the backoff used for transient failures.
// Tests replace it to avoid sleeping.
var retryPolicy = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithMaxRetries(b, 4)
}

var rootCmd = &cobra.Command{
	Use:   "diagnobot",
	Short: "Retrieval-augmented medical assistant",
	Long: `DiagnoBot answers medical questions grounded in a reference document.

It splits the document into overlapping chunks, embeds them into a persisted
vector index, and answers each question from the passages most similar to it.

DiagnoBot provides preliminary information only. Always consult a healthcare
professional for diagnosis and treatment.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose || envVerbose() {
			logger.SetVerbose(true)
		}
	},
}

// Services groups the dependencies of the CLI.
type Services struct {
	Settings  driving.SettingsService
	Index     driving.IndexService
	Answer    driving.AnswerService
	Retrieval driving.RetrievalService
	Watcher   driven.SourceWatcher

	// SourcePath is the reference document location watched by "index watch".
	SourcePath string
}

// SetServices installs the services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	indexService = s.Index
	answerService = s.Answer
	retrievalService = s.Retrieval
	sourceWatcher = s.Watcher
	sourcePath = s.SourcePath
}

// SetVersion sets the version reported by "diagnobot version".
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. Cancelling ctx stops long-running
// commands such as chat and index watch.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func envVerbose() bool {
	v, err := strconv.ParseBool(os.Getenv("DIAGNOBOT_VERBOSE"))
	return err == nil && v
}

// commandContext returns the command's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// retryTransient runs operation and retries it while it fails with a
// transient error. Other errors are returned immediately.
func retryTransient(ctx context.Context, name string, operation func() error) error {
	op := func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("%s failed, retrying in %s: %v", name, wait.Round(time.Millisecond), err)
	}
	return backoff.RetryNotify(op, backoff.WithContext(retryPolicy(), ctx), notify)
}
