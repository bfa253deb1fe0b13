// ABOUTME: Posts the review summary as a pull request comment.
// ABOUTME: Edits the existing marked comment in place instead of stacking new ones.

package github

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	gogithub "github.com/google/go-github/v61/github"
)

// commentMarker identifies the tool's own comment among all PR comments.
const commentMarker = "<!-- dependency-review-cli -->"

// maxCommentLength is the GitHub issue comment size limit.
const maxCommentLength = 65536

// CommentOnPR posts body as the review comment on a pull request. When a
// comment carrying the marker already exists it is edited, so each PR keeps
// a single review comment. Oversized bodies are truncated with a notice.
func (c *Client) CommentOnPR(ctx context.Context, owner, repo string, number int, body string) error {
	body = formatCommentBody(body)

	existing, err := c.findReviewComment(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("failed to list comments on %s/%s#%d: %w", owner, repo, number, err)
	}

	comment := &gogithub.IssueComment{Body: gogithub.String(body)}

	if existing != 0 {
		if _, _, err := c.gh.Issues.EditComment(ctx, owner, repo, existing, comment); err != nil {
			return fmt.Errorf("failed to update PR comment: %w", err)
		}
		c.logger.WithField("comment_id", existing).Debug("Updated review comment")
		return nil
	}

	if _, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, comment); err != nil {
		return fmt.Errorf("failed to create PR comment: %w", err)
	}
	c.logger.Debug("Created review comment")
	return nil
}

// findReviewComment returns the ID of the existing marked comment, or zero.
func (c *Client) findReviewComment(ctx context.Context, owner, repo string, number int) (int64, error) {
	opts := &gogithub.IssueListCommentsOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return 0, err
		}
		for _, comment := range comments {
			if strings.Contains(comment.GetBody(), commentMarker) {
				return comment.GetID(), nil
			}
		}
		if resp.NextPage == 0 {
			return 0, nil
		}
		opts.Page = resp.NextPage
	}
}

func formatCommentBody(body string) string {
	const truncationNotice = "\n\n⚠️ Summary truncated to fit the comment size limit."
	suffix := "\n\n" + commentMarker

	limit := maxCommentLength - len(suffix)
	if len(body) > limit {
		body = truncateUTF8(body, limit-len(truncationNotice)) + truncationNotice
	}

	return body + suffix
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
