// Package github provides the client and data types used to observe and
// mutate the external mirror of an issue: its pull request state, check
// runs, reviews, and labels on the GitHub REST API.
package github

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited or
	// transiently failing requests.
	MaxRetries = 3

	// MaxPageSize is the page size used for review and check-run listings.
	MaxPageSize = 100

	// MaxPages bounds pagination to protect against malformed Link headers.
	MaxPages = 50
)

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	Token      string       // GitHub personal access token
	BaseURL    string       // API base URL (default: https://api.github.com)
	HTTPClient *http.Client // Optional custom HTTP client
}

// Ref identifies one pull request: "owner/repo#number".
type Ref struct {
	Owner  string
	Repo   string
	Number int
}

// String renders the ref in its canonical "owner/repo#number" form.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ParseRef parses an "owner/repo#number" reference. The format is exact;
// anything else is a configuration mistake, not something to guess around.
func ParseRef(s string) (Ref, error) {
	repoPart, numPart, ok := strings.Cut(s, "#")
	if !ok {
		return Ref{}, fmt.Errorf("invalid ref %q: want owner/repo#number", s)
	}
	owner, repo, ok := strings.Cut(repoPart, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return Ref{}, fmt.Errorf("invalid ref %q: want owner/repo#number", s)
	}
	number, err := strconv.Atoi(numPart)
	if err != nil || number <= 0 {
		return Ref{}, fmt.Errorf("invalid ref %q: bad pull request number", s)
	}
	return Ref{Owner: owner, Repo: repo, Number: number}, nil
}

// PullRequest represents a pull request from the GitHub API.
type PullRequest struct {
	ID        int        `json:"id"`
	Number    int        `json:"number"`
	State     string     `json:"state"` // "open" or "closed"
	Title     string     `json:"title"`
	Merged    bool       `json:"merged"`
	Mergeable *bool      `json:"mergeable"` // null while GitHub computes it
	Labels    []Label    `json:"labels"`
	Head      BranchRef  `json:"head"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	HTMLURL   string     `json:"html_url"`
}

// BranchRef identifies the head or base of a pull request.
type BranchRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// Label represents a GitHub label.
type Label struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// Review represents a pull request review.
type Review struct {
	ID          int        `json:"id"`
	User        *User      `json:"user,omitempty"`
	State       string     `json:"state"` // APPROVED, CHANGES_REQUESTED, COMMENTED, DISMISSED, PENDING
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// Review state values as returned by the API.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewCommented        = "COMMENTED"
	ReviewDismissed        = "DISMISSED"
)

// User represents a GitHub user.
type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

// CheckRun represents one check run on a commit.
type CheckRun struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`     // queued, in_progress, completed
	Conclusion string `json:"conclusion"` // success, failure, neutral, cancelled, skipped, timed_out, action_required
}

// Check run conclusion values the engine cares about.
const (
	CheckSuccess = "success"
	CheckSkipped = "skipped"
)

// checkRunsResponse is the envelope GitHub wraps check-run listings in.
type checkRunsResponse struct {
	TotalCount int        `json:"total_count"`
	CheckRuns  []CheckRun `json:"check_runs"`
}

// Snapshot is one observation of the external mirror, assembled from the
// pull request, its reviews, and the head commit's check runs. The sync
// engine consumes snapshots; it never talks to the API itself.
type Snapshot struct {
	Ref       Ref
	State     string // "open" or "closed"
	Merged    bool
	Mergeable *bool
	Labels    []Label
	Reviews   []Review
	Checks    []CheckRun
	FetchedAt time.Time
}

// RawStatus is the external status string recorded on the canonical side
// for bookkeeping: "merged", "closed", or "open".
func (s *Snapshot) RawStatus() string {
	if s.Merged {
		return "merged"
	}
	return s.State
}

// LabelNames extracts label name strings from a slice of Label structs.
func LabelNames(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}
