package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bountyline/internal/config"
	"bountyline/internal/domain"
	"bountyline/internal/engine/identity"
	"bountyline/internal/events"
	"bountyline/internal/ledger"
	"bountyline/internal/repo"
)

// Engine is the lifecycle state machine. Every public method runs as one
// atomic transaction: validate, mutate, append events, commit. External
// payouts are issued strictly after commit so re-entry through a transfer
// can never observe unsettled state.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Ledger   *ledger.Ledger
	Identity identity.Registry
	Events   events.Writer
	Config   *config.Config
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Ledger:   &ledger.Ledger{DB: db, Config: cfg},
		Identity: identity.Registry{DB: db},
		Events:   events.Writer{DB: db},
		Config:   cfg,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// RegisterIdentity binds caller to its uniqueness token.
func (e Engine) RegisterIdentity(ctx context.Context, caller, token string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := e.nowString()
	if err := e.Identity.Register(ctx, tx, caller, token, now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TypeIdentityRegistered, 0, caller, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateIssueOptions are parameters for creating an issue. Zero duration
// overrides fall back to the protocol defaults and are frozen per issue.
type CreateIssueOptions struct {
	Creator          string
	Reference        string
	Difficulty       domain.Difficulty
	Payment          int64
	MinCompletionPct int64
	EasyDays         int64
	MediumDays       int64
	HardDays         int64
}

// CreateIssue escrows payment minus the protocol fee as a new OPEN issue
// and returns it. The fee is forwarded to the operator account in the same
// transaction.
func (e Engine) CreateIssue(ctx context.Context, opts CreateIssueOptions) (domain.Issue, error) {
	if opts.Reference == "" {
		return domain.Issue{}, fmt.Errorf("reference is required: %w", ErrInvalidAmount)
	}
	if !opts.Difficulty.Valid() {
		return domain.Issue{}, fmt.Errorf("difficulty %d: %w", opts.Difficulty, ErrInvalidAmount)
	}
	if opts.MinCompletionPct < 0 || opts.MinCompletionPct > 100 {
		return domain.Issue{}, fmt.Errorf("min completion pct %d: %w", opts.MinCompletionPct, ErrInvalidAmount)
	}
	bounty, err := e.Ledger.NetOfFee(opts.Payment)
	if err != nil {
		return domain.Issue{}, err
	}
	defaults := e.Config.Protocol.Durations
	if opts.EasyDays <= 0 {
		opts.EasyDays = defaults.Easy
	}
	if opts.MediumDays <= 0 {
		opts.MediumDays = defaults.Medium
	}
	if opts.HardDays <= 0 {
		opts.HardDays = defaults.Hard
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	if err := e.Identity.RequireVerified(ctx, tx, opts.Creator); err != nil {
		return domain.Issue{}, err
	}
	now := e.nowString()
	issue := domain.Issue{
		Creator:          opts.Creator,
		Reference:        opts.Reference,
		Bounty:           bounty,
		Difficulty:       opts.Difficulty,
		EasyDays:         opts.EasyDays,
		MediumDays:       opts.MediumDays,
		HardDays:         opts.HardDays,
		MinCompletionPct: opts.MinCompletionPct,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	id, err := e.Repo.InsertIssue(ctx, tx, issue)
	if err != nil {
		return domain.Issue{}, err
	}
	issue.ID = id
	if err := e.Ledger.RecordDeposit(ctx, tx, id, opts.Creator, opts.Payment); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeFeePaid, id, opts.Creator, events.EventPayload{
		"payer":     opts.Creator,
		"amount":    e.Config.Protocol.FeeAmount,
		"recipient": e.Config.Protocol.FeeRecipient,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeIssueCreated, id, opts.Creator, events.EventPayload{
		"creator":    opts.Creator,
		"reference":  opts.Reference,
		"bounty":     bounty,
		"difficulty": opts.Difficulty.String(),
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

// TakeIssue assigns an OPEN issue to caller against a stake. Stake bounds
// are computed from the bounty at take time and never re-validated.
func (e Engine) TakeIssue(ctx context.Context, issueID int64, caller string, stake int64) (domain.Issue, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	if err := e.Identity.RequireVerified(ctx, tx, caller); err != nil {
		return domain.Issue{}, err
	}
	issue, err := e.Repo.GetIssueTx(ctx, tx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if issue.IsCompleted {
		return domain.Issue{}, fmt.Errorf("issue %d is completed: %w", issueID, ErrInvalidState)
	}
	if issue.AssignedTo != nil {
		return domain.Issue{}, fmt.Errorf("issue %d: %w", issueID, ErrAlreadyAssigned)
	}
	if caller == issue.Creator {
		return domain.Issue{}, fmt.Errorf("creator cannot take own issue: %w", ErrUnauthorized)
	}
	attempted, err := e.Repo.HasAttemptedTx(ctx, tx, issueID, caller)
	if err != nil {
		return domain.Issue{}, err
	}
	if attempted {
		return domain.Issue{}, fmt.Errorf("account %s, issue %d: %w", caller, issueID, ErrAlreadyAttempted)
	}
	minStake := issue.Bounty * e.Config.Protocol.StakeMinPct / 100
	maxStake := issue.Bounty * e.Config.Protocol.StakeMaxPct / 100
	if stake < minStake || stake > maxStake {
		return domain.Issue{}, fmt.Errorf("stake %d outside [%d,%d]: %w", stake, minStake, maxStake, ErrInvalidAmount)
	}

	now := e.now()
	nowStr := now.UTC().Format(time.RFC3339)
	deadline := now.UTC().Add(time.Duration(issue.DurationDaysFor(issue.Difficulty)) * 24 * time.Hour).Format(time.RFC3339)
	issue.AssignedTo = &caller
	issue.Deadline = &deadline
	issue.ConfidenceScore = 0
	issue.UpdatedAt = nowStr
	if err := e.Repo.UpdateIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Repo.InsertStake(ctx, tx, domain.Stake{IssueID: issueID, Account: caller, Amount: stake, CreatedAt: nowStr}); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Ledger.RecordStake(ctx, tx, issueID, caller, stake); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Repo.RecordAttempt(ctx, tx, issueID, caller, nowStr); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Repo.InsertContributor(ctx, tx, domain.Contributor{IssueID: issueID, Account: caller, AssignedAt: nowStr, Outcome: "active"}); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeIssueAssigned, issueID, caller, events.EventPayload{
		"contributor": caller,
		"deadline":    deadline,
		"stake":       stake,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

// GradeByAI records an advisory confidence score. Only the configured
// oracle account may call it; the score never moves funds.
func (e Engine) GradeByAI(ctx context.Context, issueID int64, caller string, score int64) (domain.Issue, error) {
	if caller != e.Config.Protocol.OracleAccount {
		return domain.Issue{}, fmt.Errorf("only the oracle may grade: %w", ErrUnauthorized)
	}
	if score < 0 || score > 100 {
		return domain.Issue{}, fmt.Errorf("score %d: %w", score, ErrInvalidAmount)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	issue, err := e.Repo.GetIssueTx(ctx, tx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if issue.IsCompleted || issue.AssignedTo == nil {
		return domain.Issue{}, fmt.Errorf("issue %d not under assignment: %w", issueID, ErrInvalidState)
	}
	issue.ConfidenceScore = score
	issue.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeIssueGraded, issueID, caller, events.EventPayload{"score": score}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

// SubmitPercentageClaim lets the current contributor claim a completion
// fraction for creator review. Re-submitting while under review replaces
// the pending claim.
func (e Engine) SubmitPercentageClaim(ctx context.Context, issueID int64, caller string, pct int64) (domain.Issue, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	issue, err := e.Repo.GetIssueTx(ctx, tx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if issue.IsCompleted || issue.AssignedTo == nil {
		return domain.Issue{}, fmt.Errorf("issue %d not under assignment: %w", issueID, ErrInvalidState)
	}
	if *issue.AssignedTo != caller {
		return domain.Issue{}, fmt.Errorf("only the assigned contributor may claim: %w", ErrUnauthorized)
	}
	if pct <= 0 || pct > 100 {
		return domain.Issue{}, fmt.Errorf("percentage %d: %w", pct, ErrInvalidAmount)
	}
	if pct <= issue.PercentageCompleted {
		return domain.Issue{}, fmt.Errorf("percentage %d not above accepted %d: %w", pct, issue.PercentageCompleted, ErrInvalidAmount)
	}
	issue.ClaimedPercentage = pct
	issue.IsUnderReview = true
	issue.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeClaimSubmitted, issueID, caller, events.EventPayload{"percentage": pct}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

// RespondToClaim accepts or rejects the pending claim. The pending claim
// and the review flag are cleared together regardless of outcome, so a
// second response finds no claim and fails.
func (e Engine) RespondToClaim(ctx context.Context, issueID int64, caller string, accept bool) (domain.Issue, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	issue, err := e.Repo.GetIssueTx(ctx, tx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if issue.IsCompleted {
		return domain.Issue{}, fmt.Errorf("issue %d is completed: %w", issueID, ErrInvalidState)
	}
	if caller != issue.Creator {
		return domain.Issue{}, fmt.Errorf("only the creator may respond: %w", ErrUnauthorized)
	}
	if issue.ClaimedPercentage == 0 {
		return domain.Issue{}, fmt.Errorf("no pending claim on issue %d: %w", issueID, ErrInvalidState)
	}
	claimed := issue.ClaimedPercentage
	if accept {
		issue.PercentageCompleted = claimed
	}
	issue.ClaimedPercentage = 0
	issue.IsUnderReview = false
	issue.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeClaimResponded, issueID, caller, events.EventPayload{
		"accepted":   accept,
		"percentage": claimed,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

// CompleteIssue pays the contributor bounty plus stake in a single payout
// and seals the issue. The stake row is deleted and the completed flag set
// before the external transfer is issued.
func (e Engine) CompleteIssue(ctx context.Context, issueID int64, caller string) (domain.Issue, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	issue, err := e.Repo.GetIssueTx(ctx, tx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if issue.IsCompleted {
		return domain.Issue{}, fmt.Errorf("issue %d already completed: %w", issueID, ErrInvalidState)
	}
	if caller != issue.Creator {
		return domain.Issue{}, fmt.Errorf("only the creator may complete: %w", ErrUnauthorized)
	}
	if issue.AssignedTo == nil {
		return domain.Issue{}, fmt.Errorf("issue %d has no contributor: %w", issueID, ErrInvalidState)
	}
	contributor := *issue.AssignedTo
	stake, err := e.Repo.GetStakeTx(ctx, tx, issueID, contributor)
	if err != nil {
		return domain.Issue{}, err
	}
	payout := issue.Bounty + stake.Amount
	if err := e.Repo.DeleteStake(ctx, tx, issueID, contributor); err != nil {
		return domain.Issue{}, err
	}
	now := e.nowString()
	issue.ClaimedPercentage = 0
	issue.IsUnderReview = false
	issue.IsCompleted = true
	issue.UpdatedAt = now
	if err := e.Repo.UpdateIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Repo.CloseContributor(ctx, tx, issueID, contributor, now, "completed"); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Ledger.RecordPayout(ctx, tx, issueID, contributor, payout); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeIssueCompleted, issueID, caller, events.EventPayload{
		"contributor": contributor,
		"payout":      payout,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	// Interaction only after the spend is settled.
	if err := e.Ledger.PayOut(ctx, issueID, contributor, payout); err != nil {
		return issue, fmt.Errorf("payout settled but transfer failed: %w", err)
	}
	return issue, nil
}

// ClaimExpiredIssue lets the contributor exit after the deadline. The
// accepted fraction of the bounty is paid out; the stake is returned in
// full or, below the issue's threshold, forfeited into the bounty. The
// issue re-opens for other contributors with its accepted percentage
// intact; the exiting identity is barred from re-taking it.
func (e Engine) ClaimExpiredIssue(ctx context.Context, issueID int64, caller string) (domain.Issue, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	issue, err := e.Repo.GetIssueTx(ctx, tx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if issue.IsCompleted {
		return domain.Issue{}, fmt.Errorf("issue %d is completed: %w", issueID, ErrInvalidState)
	}
	if issue.AssignedTo == nil {
		return domain.Issue{}, fmt.Errorf("issue %d has no contributor: %w", issueID, ErrInvalidState)
	}
	if *issue.AssignedTo != caller {
		return domain.Issue{}, fmt.Errorf("only the assigned contributor may reclaim: %w", ErrUnauthorized)
	}
	now := e.now()
	deadline, err := time.Parse(time.RFC3339, *issue.Deadline)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("parse deadline: %w", err)
	}
	if !now.After(deadline) {
		return domain.Issue{}, fmt.Errorf("deadline %s: %w", *issue.Deadline, ErrDeadlineNotReached)
	}
	stake, err := e.Repo.GetStakeTx(ctx, tx, issueID, caller)
	if err != nil {
		return domain.Issue{}, err
	}

	fractionalBounty := issue.Bounty * issue.PercentageCompleted / 100
	returnedStake := stake.Amount
	forfeited := int64(0)
	if issue.PercentageCompleted < issue.MinCompletionPct {
		forfeited = stake.Amount
		returnedStake = 0
	}
	if err := e.Repo.DeleteStake(ctx, tx, issueID, caller); err != nil {
		return domain.Issue{}, err
	}
	payout := fractionalBounty + returnedStake

	nowStr := now.UTC().Format(time.RFC3339)
	issue.Bounty = issue.Bounty - fractionalBounty + forfeited
	issue.AssignedTo = nil
	issue.Deadline = nil
	issue.ConfidenceScore = 0
	issue.ClaimedPercentage = 0
	issue.IsUnderReview = false
	issue.UpdatedAt = nowStr
	if err := e.Repo.UpdateIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Repo.CloseContributor(ctx, tx, issueID, caller, nowStr, "expired"); err != nil {
		return domain.Issue{}, err
	}
	if forfeited > 0 {
		if err := e.Events.Append(ctx, tx, events.TypeStakeForfeited, issueID, caller, events.EventPayload{
			"contributor": caller,
			"amount":      forfeited,
		}); err != nil {
			return domain.Issue{}, err
		}
	}
	if err := e.Ledger.RecordPayout(ctx, tx, issueID, caller, payout); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeDeadlineExpired, issueID, caller, events.EventPayload{
		"contributor": caller,
		"payout":      payout,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Ledger.PayOut(ctx, issueID, caller, payout); err != nil {
		return issue, fmt.Errorf("payout settled but transfer failed: %w", err)
	}
	return issue, nil
}

// IncreaseBounty tops up an open issue's escrow.
func (e Engine) IncreaseBounty(ctx context.Context, issueID int64, caller string, amount int64) (domain.Issue, error) {
	if amount <= 0 {
		return domain.Issue{}, fmt.Errorf("top-up %d: %w", amount, ErrInvalidAmount)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	issue, err := e.Repo.GetIssueTx(ctx, tx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if issue.IsCompleted {
		return domain.Issue{}, fmt.Errorf("issue %d is completed: %w", issueID, ErrInvalidState)
	}
	if caller != issue.Creator {
		return domain.Issue{}, fmt.Errorf("only the creator may top up: %w", ErrUnauthorized)
	}
	issue.Bounty += amount
	issue.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Ledger.RecordTopUp(ctx, tx, issueID, caller, amount); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeBountyIncreased, issueID, caller, events.EventPayload{
		"amount": amount,
		"total":  issue.Bounty,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

// IncreaseDeadline extends the current assignment by extensionDays.
func (e Engine) IncreaseDeadline(ctx context.Context, issueID int64, caller string, extensionDays int64) (domain.Issue, error) {
	if extensionDays <= 0 {
		return domain.Issue{}, fmt.Errorf("extension %d: %w", extensionDays, ErrInvalidAmount)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	issue, err := e.Repo.GetIssueTx(ctx, tx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if issue.IsCompleted || issue.AssignedTo == nil {
		return domain.Issue{}, fmt.Errorf("issue %d not under assignment: %w", issueID, ErrInvalidState)
	}
	if caller != issue.Creator {
		return domain.Issue{}, fmt.Errorf("only the creator may extend: %w", ErrUnauthorized)
	}
	deadline, err := time.Parse(time.RFC3339, *issue.Deadline)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("parse deadline: %w", err)
	}
	extended := deadline.Add(time.Duration(extensionDays) * 24 * time.Hour).Format(time.RFC3339)
	issue.Deadline = &extended
	issue.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeDeadlineExtended, issueID, caller, events.EventPayload{
		"deadline": extended,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

// IncreaseDifficulty raises the ordinal difficulty of an assigned issue.
// The deadline is deliberately not recomputed.
func (e Engine) IncreaseDifficulty(ctx context.Context, issueID int64, caller string, next domain.Difficulty) (domain.Issue, error) {
	if !next.Valid() {
		return domain.Issue{}, fmt.Errorf("difficulty %d: %w", next, ErrInvalidAmount)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	issue, err := e.Repo.GetIssueTx(ctx, tx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if issue.IsCompleted || issue.AssignedTo == nil {
		return domain.Issue{}, fmt.Errorf("issue %d not under assignment: %w", issueID, ErrInvalidState)
	}
	if caller != issue.Creator {
		return domain.Issue{}, fmt.Errorf("only the creator may raise difficulty: %w", ErrUnauthorized)
	}
	if next <= issue.Difficulty {
		return domain.Issue{}, fmt.Errorf("difficulty %s not above %s: %w", next, issue.Difficulty, ErrInvalidState)
	}
	issue.Difficulty = next
	issue.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeDifficultyRaised, issueID, caller, events.EventPayload{
		"difficulty": next.String(),
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

// Expirable reports whether the issue's current assignment can be
// reclaimed right now.
func (e Engine) Expirable(issue domain.Issue) bool {
	return repo.Expirable(issue, e.now())
}
