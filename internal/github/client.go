// Package github fetches repository activity through the gh CLI and
// normalizes it into watch events. Using gh rather than direct HTTP
// keeps authentication in the user's existing `gh auth login` setup.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/gh-watch/internal/event"
)

const (
	pageSize            = 100
	maxPagesPerEndpoint = 1000

	// Transient exec failures (ETXTBSY during gh upgrades) get retried.
	execMaxAttempts = 5
	execRetryBase   = 20 * time.Millisecond

	// Keep well under GitHub's secondary rate limits even with many
	// repos configured.
	requestsPerSecond = 5
)

// EnvGhBin overrides the gh binary location.
const EnvGhBin = "GH_WATCH_GH_BIN"

// AuthError means gh is installed but not authenticated.
type AuthError struct {
	Stderr string
}

func (e *AuthError) Error() string {
	return "github: gh is not authenticated; run `gh auth login` (" + e.Stderr + ")"
}

// Client runs gh commands and converts the results to watch events.
type Client struct {
	bin     string
	limiter *rate.Limiter
}

// NewClient builds a client using the gh binary from GH_WATCH_GH_BIN or
// PATH.
func NewClient() *Client {
	bin := os.Getenv(EnvGhBin)
	if bin == "" {
		bin = "gh"
	}
	return NewClientWithBin(bin)
}

// NewClientWithBin builds a client around a specific gh binary.
func NewClientWithBin(bin string) *Client {
	return &Client{
		bin:     bin,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// CheckAuth verifies gh can reach GitHub as an authenticated user.
// Returns *AuthError when the credential check itself fails.
func (c *Client) CheckAuth(ctx context.Context) error {
	_, stderr, err := c.runGh(ctx, "auth", "status")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &AuthError{Stderr: strings.TrimSpace(stderr)}
		}
		return fmt.Errorf("github: gh auth status: %w", err)
	}
	return nil
}

// ViewerLogin returns the authenticated user's login.
func (c *Client) ViewerLogin(ctx context.Context) (string, error) {
	out, _, err := c.runGh(ctx, "api", "user", "--jq", ".login")
	if err != nil {
		return "", fmt.Errorf("github: viewer login: %w", err)
	}
	login := strings.TrimSpace(out)
	if login == "" {
		return "", fmt.Errorf("github: viewer login is empty")
	}
	return login, nil
}

// FetchRepoEvents returns every event in repo with activity after
// since, oldest first. The five endpoint listings are fetched in
// parallel; any one failing fails the whole repo fetch.
func (c *Client) FetchRepoEvents(ctx context.Context, repo string, since time.Time) ([]event.WatchEvent, error) {
	var (
		pullsCreated, pullsUpdated    []ghPull
		issues                        []ghIssue
		issueComments, reviewComments []ghComment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pullsCreated, err = fetchDescUntilSince[ghPull](gctx, c, repo, "pulls", since,
			func(page int) string {
				return fmt.Sprintf(
					"repos/%s/pulls?state=all&sort=created&direction=desc&per_page=%d&page=%d",
					repo, pageSize, page)
			},
			func(pr ghPull) time.Time { return pr.CreatedAt },
		)
		return err
	})
	g.Go(func() error {
		var err error
		pullsUpdated, err = fetchDescUntilSince[ghPull](gctx, c, repo, "pull updates", since,
			func(page int) string {
				return fmt.Sprintf(
					"repos/%s/pulls?state=all&sort=updated&direction=desc&per_page=%d&page=%d",
					repo, pageSize, page)
			},
			func(pr ghPull) time.Time { return pr.updatedOrCreated() },
		)
		return err
	})
	g.Go(func() error {
		var err error
		issues, err = fetchDescUntilSince[ghIssue](gctx, c, repo, "issues", since,
			func(page int) string {
				return fmt.Sprintf(
					"repos/%s/issues?state=all&sort=created&direction=desc&per_page=%d&page=%d",
					repo, pageSize, page)
			},
			func(issue ghIssue) time.Time { return issue.CreatedAt },
		)
		return err
	})

	sinceParam := since.UTC().Format(time.RFC3339)
	g.Go(func() error {
		var err error
		issueComments, err = c.fetchPaginatedComments(gctx, repo, "issue comments",
			fmt.Sprintf("repos/%s/issues/comments?since=%s&per_page=%d", repo, sinceParam, pageSize))
		return err
	})
	g.Go(func() error {
		var err error
		reviewComments, err = c.fetchPaginatedComments(gctx, repo, "review comments",
			fmt.Sprintf("repos/%s/pulls/comments?since=%s&per_page=%d", repo, sinceParam, pageSize))
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	pulls := mergePullsByID(pullsCreated, pullsUpdated)
	return normalizeEvents(repo, since, pulls, issues, issueComments, reviewComments), nil
}

// fetchDescUntilSince walks a descending-sorted listing page by page
// and stops once a page's oldest item is at or before since.
func fetchDescUntilSince[T any](
	ctx context.Context,
	c *Client,
	repo, itemLabel string,
	since time.Time,
	endpointForPage func(page int) string,
	createdAt func(T) time.Time,
) ([]T, error) {
	var all []T
	for page := 1; page <= maxPagesPerEndpoint; page++ {
		endpoint := endpointForPage(page)
		out, _, err := c.runGh(ctx, "api", endpoint)
		if err != nil {
			return nil, fmt.Errorf("github: fetch %s for %s (page %d): %w", itemLabel, repo, page, err)
		}
		var items []T
		if err := json.Unmarshal([]byte(out), &items); err != nil {
			return nil, fmt.Errorf("github: invalid %s payload for %s (page %d): %w", itemLabel, repo, page, err)
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
		if !createdAt(items[len(items)-1]).After(since) {
			return all, nil
		}
	}
	return nil, fmt.Errorf("github: max pages reached fetching %s for %s (limit %d)",
		itemLabel, repo, maxPagesPerEndpoint)
}

// fetchPaginatedComments uses gh's own pagination for the since-filtered
// comment listings; --slurp wraps each page in an outer array.
func (c *Client) fetchPaginatedComments(ctx context.Context, repo, itemLabel, endpoint string) ([]ghComment, error) {
	out, _, err := c.runGh(ctx, "api", "--paginate", "--slurp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("github: fetch %s for %s: %w", itemLabel, repo, err)
	}
	var pages [][]ghComment
	if err := json.Unmarshal([]byte(out), &pages); err != nil {
		return nil, fmt.Errorf("github: invalid %s payload for %s: %w", itemLabel, repo, err)
	}
	var comments []ghComment
	for _, page := range pages {
		comments = append(comments, page...)
	}
	return comments, nil
}

func (c *Client) runGh(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	var outBuf, errBuf bytes.Buffer
	for attempt := 1; ; attempt++ {
		outBuf.Reset()
		errBuf.Reset()
		cmd := exec.CommandContext(ctx, c.bin, args...)
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
		err := cmd.Run()
		if err == nil {
			return strings.TrimSpace(outBuf.String()), errBuf.String(), nil
		}
		if errors.Is(err, syscall.ETXTBSY) && attempt < execMaxAttempts {
			select {
			case <-time.After(execRetryBase * time.Duration(attempt)):
				continue
			case <-ctx.Done():
				return "", "", ctx.Err()
			}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", errBuf.String(), fmt.Errorf(
				"gh %s failed (%s): %s: %w",
				strings.Join(args, " "), exitErr.ProcessState, strings.TrimSpace(errBuf.String()), err)
		}
		return "", errBuf.String(), fmt.Errorf("exec %s: %w", c.bin, err)
	}
}
