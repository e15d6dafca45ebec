package domain

import "fmt"

// Difficulty is ordinal: once an issue is assigned it may only go up.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	}
	return fmt.Sprintf("difficulty(%d)", int(d))
}

func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Hard
}

// ParseDifficulty maps the wire/CLI name to the ordinal.
func ParseDifficulty(s string) (Difficulty, error) {
	switch s {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return 0, fmt.Errorf("unknown difficulty %q", s)
}

// Issue is the canonical record of a bounty-backed work item. IDs are
// 1-based, monotonically increasing and never reused. Once IsCompleted is
// set no field changes again.
type Issue struct {
	ID                  int64      `json:"id"`
	Creator             string     `json:"creator"`
	Reference           string     `json:"reference"`
	Bounty              int64      `json:"bounty"`
	AssignedTo          *string    `json:"assigned_to,omitempty"`
	IsCompleted         bool       `json:"is_completed"`
	PercentageCompleted int64      `json:"percentage_completed"`
	ClaimedPercentage   int64      `json:"claimed_percentage"`
	IsUnderReview       bool       `json:"is_under_review"`
	Difficulty          Difficulty `json:"difficulty"`
	Deadline            *string    `json:"deadline,omitempty" format:"date-time"`
	EasyDays            int64      `json:"easy_days"`
	MediumDays          int64      `json:"medium_days"`
	HardDays            int64      `json:"hard_days"`
	MinCompletionPct    int64      `json:"min_completion_pct"`
	ConfidenceScore     int64      `json:"confidence_score"`
	CreatedAt           string     `json:"created_at" format:"date-time"`
	UpdatedAt           string     `json:"updated_at" format:"date-time"`
}

// Open reports whether the issue can be taken.
func (i Issue) Open() bool {
	return !i.IsCompleted && i.AssignedTo == nil
}

// DurationDaysFor returns the frozen per-issue assignment duration for a
// difficulty.
func (i Issue) DurationDaysFor(d Difficulty) int64 {
	switch d {
	case Easy:
		return i.EasyDays
	case Medium:
		return i.MediumDays
	default:
		return i.HardDays
	}
}

// Stake is the commitment bond for one (issue, contributor) pair. The row
// exists while the funds are escrowed and is deleted by the single payout
// that settles it.
type Stake struct {
	IssueID   int64  `json:"issue_id"`
	Account   string `json:"account"`
	Amount    int64  `json:"amount"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Verification binds an account to its uniqueness token. Append-only,
// immutable for the life of the system.
type Verification struct {
	Account   string `json:"account"`
	Token     string `json:"token"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Contributor is one entry of an issue's assignment history.
type Contributor struct {
	IssueID    int64   `json:"issue_id"`
	Account    string  `json:"account"`
	AssignedAt string  `json:"assigned_at" format:"date-time"`
	ExitedAt   *string `json:"exited_at,omitempty" format:"date-time"`
	Outcome    string  `json:"outcome" enum:"active,completed,expired"`
}

// Transfer is one row of the append-only ledger journal.
type Transfer struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Kind    string `json:"kind" enum:"deposit,fee,stake,topup,payout"`
	IssueID *int64 `json:"issue_id,omitempty"`
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// Event is one row of the append-only event log.
type Event struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Type    string `json:"type"`
	IssueID *int64 `json:"issue_id,omitempty"`
	ActorID string `json:"actor_id"`
	Payload string `json:"payload_json"`
}

// APIKey authenticates server callers that do not use JWTs.
type APIKey struct {
	ID        string `json:"id"`
	Account   string `json:"account"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
