package bountylinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Bountyline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Issue represents the API issue model.
type Issue struct {
	ID                  int64   `json:"id"`
	Creator             string  `json:"creator"`
	Reference           string  `json:"reference"`
	Bounty              int64   `json:"bounty"`
	AssignedTo          *string `json:"assigned_to,omitempty"`
	IsCompleted         bool    `json:"is_completed"`
	PercentageCompleted int64   `json:"percentage_completed"`
	ClaimedPercentage   int64   `json:"claimed_percentage"`
	IsUnderReview       bool    `json:"is_under_review"`
	Difficulty          string  `json:"difficulty"`
	Deadline            *string `json:"deadline,omitempty"`
	MinCompletionPct    int64   `json:"min_completion_pct"`
	ConfidenceScore     int64   `json:"confidence_score"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

// Verification represents an identity registration.
type Verification struct {
	Account   string `json:"account"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Contributor is one entry of an issue's assignment history.
type Contributor struct {
	Account    string  `json:"account"`
	AssignedAt string  `json:"assigned_at"`
	ExitedAt   *string `json:"exited_at,omitempty"`
	Outcome    string  `json:"outcome"`
}

// Transfer is one ledger journal row.
type Transfer struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts"`
	Kind    string `json:"kind"`
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// Event represents a log entry.
type Event struct {
	ID      int64          `json:"id"`
	TS      string         `json:"ts"`
	Type    string         `json:"type"`
	IssueID *int64         `json:"issue_id,omitempty"`
	ActorID string         `json:"actor_id"`
	Payload map[string]any `json:"payload"`
}

// CreateIssueOptions are optional parameters for CreateIssue.
type CreateIssueOptions struct {
	MinCompletionPct int64
	EasyDays         int64
	MediumDays       int64
	HardDays         int64
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// RegisterIdentity binds the authenticated account to a uniqueness token.
func (c *Client) RegisterIdentity(ctx context.Context, token string) (Verification, error) {
	var resp Verification
	err := c.do(ctx, http.MethodPost, "v1/identities", map[string]any{"token": token}, &resp)
	return resp, err
}

// GetIdentity returns the verification status of an account.
func (c *Client) GetIdentity(ctx context.Context, account string) (Verification, error) {
	var resp Verification
	err := c.do(ctx, http.MethodGet, "v1/identities/"+url.PathEscape(account), nil, &resp)
	return resp, err
}

// CreateIssue escrows a new bounty. Payment must exceed the protocol fee.
func (c *Client) CreateIssue(ctx context.Context, reference, difficulty string, payment int64, opts *CreateIssueOptions) (Issue, error) {
	body := map[string]any{
		"reference":  reference,
		"difficulty": difficulty,
		"payment":    payment,
	}
	if opts != nil {
		if opts.MinCompletionPct > 0 {
			body["min_completion_pct"] = opts.MinCompletionPct
		}
		if opts.EasyDays > 0 {
			body["easy_days"] = opts.EasyDays
		}
		if opts.MediumDays > 0 {
			body["medium_days"] = opts.MediumDays
		}
		if opts.HardDays > 0 {
			body["hard_days"] = opts.HardDays
		}
	}
	var resp Issue
	err := c.do(ctx, http.MethodPost, "v1/issues", body, &resp)
	return resp, err
}

// GetIssue fetches one issue.
func (c *Client) GetIssue(ctx context.Context, id int64) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodGet, c.issuePath(id, ""), nil, &resp)
	return resp, err
}

// ListIssues lists issues. Pass empty strings to skip filters.
func (c *Client) ListIssues(ctx context.Context, creator, assignee string, openOnly bool) ([]Issue, error) {
	q := url.Values{}
	if creator != "" {
		q.Set("creator", creator)
	}
	if assignee != "" {
		q.Set("assignee", assignee)
	}
	if openOnly {
		q.Set("open", "true")
	}
	endpoint := "v1/issues"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Issue
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// TakeIssue assigns an open issue to the authenticated account.
func (c *Client) TakeIssue(ctx context.Context, id, stake int64) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.issuePath(id, "take"), map[string]any{"stake": stake}, &resp)
	return resp, err
}

// SubmitClaim claims a completion percentage.
func (c *Client) SubmitClaim(ctx context.Context, id, percentage int64) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.issuePath(id, "claim"), map[string]any{"percentage": percentage}, &resp)
	return resp, err
}

// RespondToClaim accepts or rejects the pending claim.
func (c *Client) RespondToClaim(ctx context.Context, id int64, accept bool) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.issuePath(id, "respond"), map[string]any{"accept": accept}, &resp)
	return resp, err
}

// CompleteIssue completes the issue and pays the contributor.
func (c *Client) CompleteIssue(ctx context.Context, id int64) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.issuePath(id, "complete"), map[string]any{}, &resp)
	return resp, err
}

// ClaimExpired reclaims an expired assignment.
func (c *Client) ClaimExpired(ctx context.Context, id int64) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.issuePath(id, "expire"), map[string]any{}, &resp)
	return resp, err
}

// TopUp increases the bounty.
func (c *Client) TopUp(ctx context.Context, id, amount int64) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.issuePath(id, "topup"), map[string]any{"amount": amount}, &resp)
	return resp, err
}

// ExtendDeadline adds days to the current deadline.
func (c *Client) ExtendDeadline(ctx context.Context, id, days int64) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.issuePath(id, "extend"), map[string]any{"days": days}, &resp)
	return resp, err
}

// RaiseDifficulty raises the difficulty of an assigned issue.
func (c *Client) RaiseDifficulty(ctx context.Context, id int64, difficulty string) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.issuePath(id, "difficulty"), map[string]any{"difficulty": difficulty}, &resp)
	return resp, err
}

// Grade records an oracle confidence score.
func (c *Client) Grade(ctx context.Context, id, score int64) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.issuePath(id, "grade"), map[string]any{"score": score}, &resp)
	return resp, err
}

// Contributors returns the assignment history of an issue.
func (c *Client) Contributors(ctx context.Context, id int64) ([]Contributor, error) {
	var resp []Contributor
	err := c.do(ctx, http.MethodGet, c.issuePath(id, "contributors"), nil, &resp)
	return resp, err
}

// Journal returns the value movements of an issue.
func (c *Client) Journal(ctx context.Context, id int64) ([]Transfer, error) {
	var resp []Transfer
	err := c.do(ctx, http.MethodGet, c.issuePath(id, "journal"), nil, &resp)
	return resp, err
}

// Custody returns the total value held in escrow.
func (c *Client) Custody(ctx context.Context) (int64, error) {
	var resp struct {
		Total int64 `json:"total"`
	}
	err := c.do(ctx, http.MethodGet, "v1/custody", nil, &resp)
	return resp.Total, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage pages through the event log with a cursor.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "v1/events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) issuePath(id int64, action string) string {
	p := fmt.Sprintf("v1/issues/%d", id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
