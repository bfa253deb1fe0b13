// ABOUTME: Implements the review run: fetch the diff, evaluate policy, report.
// ABOUTME: Maps each failure class to its process exit code.

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/config"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/engine"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/github"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/report"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/scorecard"
)

const (
	outputMarkdown = "markdown"
	outputJSON     = "json"
)

type options struct {
	Owner      string
	Repo       string
	Base       string
	Head       string
	DiffFile   string
	ConfigPath string
	Token      string
	APIURL     string
	PR         int
	Output     string
	Debug      bool
}

// needsAPI reports whether this run talks to the GitHub API at all. A run
// reviewing a local diff file without commenting works fully offline.
func (o *options) needsAPI() bool {
	return o.DiffFile == "" || o.PR > 0
}

func optionsFromFlags() (*options, error) {
	opts := &options{
		Base:       viper.GetString("base"),
		Head:       viper.GetString("head"),
		DiffFile:   viper.GetString("diff-file"),
		ConfigPath: viper.GetString("config"),
		Token:      viper.GetString("token"),
		APIURL:     viper.GetString("api-url"),
		PR:         viper.GetInt("pr"),
		Output:     viper.GetString("output"),
		Debug:      viper.GetBool("debug"),
	}

	if opts.needsAPI() {
		repository := viper.GetString("repository")
		if repository == "" {
			return nil, errors.New("--repository is required")
		}
		owner, repo, ok := strings.Cut(repository, "/")
		if !ok || owner == "" || repo == "" {
			return nil, fmt.Errorf("invalid repository %q: expected owner/name", repository)
		}
		opts.Owner = owner
		opts.Repo = repo
	}

	if opts.DiffFile == "" && (opts.Base == "" || opts.Head == "") {
		return nil, errors.New("--base and --head are required")
	}
	if opts.Output != outputMarkdown && opts.Output != outputJSON {
		return nil, fmt.Errorf("invalid output format %q: expected markdown or json", opts.Output)
	}

	if opts.needsAPI() {
		if opts.Token == "" {
			opts.Token = os.Getenv("GITHUB_TOKEN")
		}
		if opts.Token == "" {
			return nil, errors.New("a GitHub token is required (--token or GITHUB_TOKEN)")
		}
	}

	return opts, nil
}

func runReview(cmd *cobra.Command, args []string) error {
	opts, err := optionsFromFlags()
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}

	// Logs go to stderr so stdout stays parseable report output.
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	if opts.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	policy, err := config.Load(opts.ConfigPath)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}

	var client *github.Client
	if opts.needsAPI() {
		client, err = github.NewClient(opts.Token, opts.APIURL, logger)
		if err != nil {
			return &exitError{code: exitConfigError, err: err}
		}
	}

	ctx := cmd.Context()

	var diff *github.DependencyDiff
	if opts.DiffFile != "" {
		diff, err = loadDiffFile(opts.DiffFile, logger)
	} else {
		diff, err = client.CompareDependencies(ctx, opts.Owner, opts.Repo, opts.Base, opts.Head)
	}
	if err != nil {
		return &exitError{code: exitRetrievalError, err: err}
	}

	scorecards := scorecard.NewService(scorecard.NewDepsDevClient(), scorecard.NewClient(), logger)
	verdict := engine.NewEngine(scorecards, logger).Evaluate(ctx, diff.Changes, policy)

	summary := report.MarkdownSummary(verdict, policy, diff.SnapshotWarnings)
	switch opts.Output {
	case outputJSON:
		data, err := report.JSON(verdict)
		if err != nil {
			return fmt.Errorf("failed to render JSON report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	default:
		fmt.Fprint(cmd.OutOrStdout(), summary)
	}

	if opts.PR > 0 && shouldComment(policy.CommentSummaryInPR, verdict.HasIssues) {
		if err := client.CommentOnPR(ctx, opts.Owner, opts.Repo, opts.PR, summary); err != nil {
			// A lost comment should not change the review outcome.
			logger.WithError(err).Warn("Failed to comment on pull request")
		}
	}

	if verdict.HasIssues {
		return &exitError{code: exitPolicyFailure}
	}
	return nil
}

// shouldComment decides whether this run warrants a PR comment. Warn-only
// runs never report issues, so "on-failure" stays silent for them.
func shouldComment(mode config.CommentMode, hasIssues bool) bool {
	switch mode {
	case config.CommentAlways:
		return true
	case config.CommentOnFailure:
		return hasIssues
	default:
		return false
	}
}
