// ABOUTME: Cobra root command for the dependency-review CLI.
// ABOUTME: Wires flags, environment variables, and exit code mapping.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

// Exit codes reported to the calling process.
const (
	exitOK             = 0
	exitPolicyFailure  = 1
	exitConfigError    = 2
	exitRetrievalError = 3
)

// exitError carries a process exit code alongside an optional cause.
// A nil cause means the outcome was already reported on stdout.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dependency-review",
		Short: "Review dependency changes between two revisions",
		Long: "dependency-review fetches the dependency diff between two revisions of a\n" +
			"GitHub repository, evaluates it against a security and license policy, and\n" +
			"reports the verdict.",
		Version: Version,
		RunE:    runReview,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("repository", "", "Repository to review, in owner/name form")
	cmd.Flags().String("base", "", "Base revision of the comparison")
	cmd.Flags().String("head", "", "Head revision of the comparison")
	cmd.Flags().String("diff-file", "", "Read the dependency diff from a JSON file instead of the API")
	cmd.Flags().StringP("config", "c", "", "Path to the policy configuration file")
	cmd.Flags().String("token", "", "GitHub API token (defaults to GITHUB_TOKEN)")
	cmd.Flags().Int("pr", 0, "Pull request number to comment on")
	cmd.Flags().StringP("output", "o", "markdown", "Output format: markdown or json")
	cmd.Flags().String("api-url", "https://api.github.com", "GitHub API base URL")
	cmd.Flags().Bool("debug", false, "Enable debug logging")

	for _, name := range []string{"repository", "base", "head", "diff-file", "config", "token", "pr", "output", "api-url", "debug"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}

	// Environment variable support (DEPENDENCY_REVIEW_REPOSITORY, etc.)
	viper.SetEnvPrefix("DEPENDENCY_REVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	return run(ctx, rootCmd)
}

func run(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", exit.err)
			}
			return exit.code
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return exitConfigError
	}
	return exitOK
}
