package server

import (
	"encoding/json"

	"bountyline/internal/domain"
)

// Request payloads

type RegisterIdentityRequest struct {
	Token string `json:"token"`
}

type CreateIssueRequest struct {
	Reference        string `json:"reference"`
	Difficulty       string `json:"difficulty" enum:"easy,medium,hard"`
	Payment          int64  `json:"payment"`
	MinCompletionPct int64  `json:"min_completion_pct,omitempty" minimum:"0" maximum:"100"`
	EasyDays         int64  `json:"easy_days,omitempty"`
	MediumDays       int64  `json:"medium_days,omitempty"`
	HardDays         int64  `json:"hard_days,omitempty"`
}

type TakeIssueRequest struct {
	Stake int64 `json:"stake"`
}

type ClaimRequest struct {
	Percentage int64 `json:"percentage" minimum:"1" maximum:"100"`
}

type RespondRequest struct {
	Accept bool `json:"accept"`
}

type TopUpRequest struct {
	Amount int64 `json:"amount"`
}

type ExtendDeadlineRequest struct {
	Days int64 `json:"days"`
}

type RaiseDifficultyRequest struct {
	Difficulty string `json:"difficulty" enum:"easy,medium,hard"`
}

type GradeRequest struct {
	Score int64 `json:"score" minimum:"0" maximum:"100"`
}

type DevLoginRequest struct {
	Account string `json:"account"`
}

// Response payloads

type IssueResponse struct {
	ID                  int64   `json:"id"`
	Creator             string  `json:"creator"`
	Reference           string  `json:"reference"`
	Bounty              int64   `json:"bounty"`
	AssignedTo          *string `json:"assigned_to,omitempty"`
	IsCompleted         bool    `json:"is_completed"`
	PercentageCompleted int64   `json:"percentage_completed"`
	ClaimedPercentage   int64   `json:"claimed_percentage"`
	IsUnderReview       bool    `json:"is_under_review"`
	Difficulty          string  `json:"difficulty" enum:"easy,medium,hard"`
	Deadline            *string `json:"deadline,omitempty" format:"date-time"`
	MinCompletionPct    int64   `json:"min_completion_pct"`
	ConfidenceScore     int64   `json:"confidence_score"`
	CreatedAt           string  `json:"created_at" format:"date-time"`
	UpdatedAt           string  `json:"updated_at" format:"date-time"`
}

type VerificationResponse struct {
	Account   string `json:"account"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"created_at,omitempty" format:"date-time"`
}

type ContributorResponse struct {
	Account    string  `json:"account"`
	AssignedAt string  `json:"assigned_at" format:"date-time"`
	ExitedAt   *string `json:"exited_at,omitempty" format:"date-time"`
	Outcome    string  `json:"outcome" enum:"active,completed,expired"`
}

type TransferResponse struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Kind    string `json:"kind" enum:"deposit,fee,stake,topup,payout"`
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type EventResponse struct {
	ID      int64           `json:"id"`
	TS      string          `json:"ts" format:"date-time"`
	Type    string          `json:"type"`
	IssueID *int64          `json:"issue_id,omitempty"`
	ActorID string          `json:"actor_id"`
	Payload json.RawMessage `json:"payload"`
}

type CustodyResponse struct {
	Total int64 `json:"total"`
}

type WhoAmIResponse struct {
	Account string `json:"account"`
	Source  string `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func issueResponse(i domain.Issue) IssueResponse {
	return IssueResponse{
		ID:                  i.ID,
		Creator:             i.Creator,
		Reference:           i.Reference,
		Bounty:              i.Bounty,
		AssignedTo:          i.AssignedTo,
		IsCompleted:         i.IsCompleted,
		PercentageCompleted: i.PercentageCompleted,
		ClaimedPercentage:   i.ClaimedPercentage,
		IsUnderReview:       i.IsUnderReview,
		Difficulty:          i.Difficulty.String(),
		Deadline:            i.Deadline,
		MinCompletionPct:    i.MinCompletionPct,
		ConfidenceScore:     i.ConfidenceScore,
		CreatedAt:           i.CreatedAt,
		UpdatedAt:           i.UpdatedAt,
	}
}

func mapIssues(items []domain.Issue) []IssueResponse {
	res := make([]IssueResponse, 0, len(items))
	for _, i := range items {
		res = append(res, issueResponse(i))
	}
	return res
}

func contributorResponse(c domain.Contributor) ContributorResponse {
	return ContributorResponse{
		Account:    c.Account,
		AssignedAt: c.AssignedAt,
		ExitedAt:   c.ExitedAt,
		Outcome:    c.Outcome,
	}
}

func transferResponse(t domain.Transfer) TransferResponse {
	return TransferResponse{
		ID:      t.ID,
		TS:      t.TS,
		Kind:    t.Kind,
		Account: t.Account,
		Amount:  t.Amount,
	}
}

func eventResponse(e domain.Event) EventResponse {
	payload := json.RawMessage("{}")
	if e.Payload != "" && json.Valid([]byte(e.Payload)) {
		payload = json.RawMessage(e.Payload)
	}
	return EventResponse{
		ID:      e.ID,
		TS:      e.TS,
		Type:    e.Type,
		IssueID: e.IssueID,
		ActorID: e.ActorID,
		Payload: payload,
	}
}
