package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewClient creates a new GitHub client.
func NewClient(token string) *Client {
	return &Client{
		Token:   token,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		BaseURL:    c.BaseURL,
		HTTPClient: httpClient,
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing or
// GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

// retryableError marks a response worth retrying (rate limit or 5xx).
type retryableError struct {
	status int
	body   string
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("API error: %s (status %d)", e.body, e.status)
}

// doRequest performs an HTTP request with authentication, retrying
// rate-limited and 5xx responses with exponential backoff.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var respBody []byte
	var respHeader http.Header

	attempt := func() error {
		var reqBody io.Reader
		if jsonBody != nil {
			reqBody = bytes.NewReader(jsonBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		const maxResponseSize = 10 * 1024 * 1024
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		// GitHub rate limiting: 429, or 403 with the remaining budget at 0.
		rateLimited := resp.StatusCode == http.StatusTooManyRequests ||
			(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0")
		if rateLimited || resp.StatusCode >= 500 {
			return &retryableError{status: resp.StatusCode, body: string(data)}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("API error: %s (status %d)", string(data), resp.StatusCode))
		}

		respBody = data
		respHeader = resp.Header
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries),
		ctx,
	)
	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, nil, err
	}
	return respBody, respHeader, nil
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL and returns it.
func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// FetchPullRequest retrieves a single pull request.
func (c *Client) FetchPullRequest(ctx context.Context, ref Ref) (*PullRequest, error) {
	urlStr := c.buildURL(fmt.Sprintf("/repos/%s/%s/pulls/%d", ref.Owner, ref.Repo, ref.Number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request %s: %w", ref, err)
	}

	var pr PullRequest
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse pull request response: %w", err)
	}
	return &pr, nil
}

// FetchReviews retrieves all reviews on a pull request, following pagination.
func (c *Client) FetchReviews(ctx context.Context, ref Ref) ([]Review, error) {
	var all []Review
	urlStr := c.buildURL(
		fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", ref.Owner, ref.Repo, ref.Number),
		map[string]string{"per_page": strconv.Itoa(MaxPageSize)},
	)

	for page := 1; ; page++ {
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch reviews for %s: %w", ref, err)
		}

		var reviews []Review
		if err := json.Unmarshal(respBody, &reviews); err != nil {
			return nil, fmt.Errorf("failed to parse reviews response: %w", err)
		}
		all = append(all, reviews...)

		next, ok := hasNextPage(headers)
		if !ok {
			break
		}
		urlStr = next
		if page >= MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
	return all, nil
}

// FetchCheckRuns retrieves all check runs for a commit, following pagination.
func (c *Client) FetchCheckRuns(ctx context.Context, ref Ref, sha string) ([]CheckRun, error) {
	var all []CheckRun
	urlStr := c.buildURL(
		fmt.Sprintf("/repos/%s/%s/commits/%s/check-runs", ref.Owner, ref.Repo, sha),
		map[string]string{"per_page": strconv.Itoa(MaxPageSize)},
	)

	for page := 1; ; page++ {
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch check runs for %s@%s: %w", ref, sha, err)
		}

		var envelope checkRunsResponse
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return nil, fmt.Errorf("failed to parse check runs response: %w", err)
		}
		all = append(all, envelope.CheckRuns...)

		next, ok := hasNextPage(headers)
		if !ok {
			break
		}
		urlStr = next
		if page >= MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
	return all, nil
}

// FetchSnapshot assembles a full external snapshot for one pull request:
// the PR itself, its reviews, and the head commit's check runs.
func (c *Client) FetchSnapshot(ctx context.Context, ref Ref) (*Snapshot, error) {
	pr, err := c.FetchPullRequest(ctx, ref)
	if err != nil {
		return nil, err
	}

	reviews, err := c.FetchReviews(ctx, ref)
	if err != nil {
		return nil, err
	}

	var checks []CheckRun
	if pr.Head.SHA != "" {
		checks, err = c.FetchCheckRuns(ctx, ref, pr.Head.SHA)
		if err != nil {
			return nil, err
		}
	}

	return &Snapshot{
		Ref:       ref,
		State:     pr.State,
		Merged:    pr.Merged,
		Mergeable: pr.Mergeable,
		Labels:    pr.Labels,
		Reviews:   reviews,
		Checks:    checks,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// SetLabels replaces the full label set on the pull request's issue.
// This is deliberately a full replace, not a merge: the external label set
// stays a deterministic function of canonical status.
func (c *Client) SetLabels(ctx context.Context, ref Ref, labels []string) error {
	urlStr := c.buildURL(fmt.Sprintf("/repos/%s/%s/issues/%d/labels", ref.Owner, ref.Repo, ref.Number), nil)
	reqBody := map[string]interface{}{"labels": labels}

	if _, _, err := c.doRequest(ctx, http.MethodPut, urlStr, reqBody); err != nil {
		return fmt.Errorf("failed to set labels on %s: %w", ref, err)
	}
	return nil
}
