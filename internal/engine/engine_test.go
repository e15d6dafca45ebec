package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bountyline/internal/config"
	"bountyline/internal/db"
	"bountyline/internal/domain"
	"bountyline/internal/engine"
	"bountyline/internal/engine/identity"
	"bountyline/internal/ledger"
	"bountyline/internal/migrate"
	"bountyline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	env := &testEnv{
		Ctx: context.Background(),
		now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	cfg := config.Default("oracle", "operator")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return env.now }
	eng.Ledger.Now = eng.Now
	eng.Events.Now = eng.Now
	env.Engine = eng
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func (env *testEnv) register(t *testing.T, account string) {
	t.Helper()
	if err := env.Engine.RegisterIdentity(env.Ctx, account, "token-"+account); err != nil {
		t.Fatalf("register %s: %v", account, err)
	}
}

// createIssue escrows payment 110 (fee 10, bounty 100) unless overridden.
func (env *testEnv) createIssue(t *testing.T, creator string, opts engine.CreateIssueOptions) domain.Issue {
	t.Helper()
	if opts.Creator == "" {
		opts.Creator = creator
	}
	if opts.Reference == "" {
		opts.Reference = "https://github.com/acme/widgets/issues/1"
	}
	if opts.Payment == 0 {
		opts.Payment = 110
	}
	issue, err := env.Engine.CreateIssue(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	return issue
}

func TestRegisterIdentity(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	ok, err := env.Engine.Identity.IsVerified(env.Ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("alice should be verified: %v", err)
	}
	ok, _ = env.Engine.Identity.IsVerified(env.Ctx, "bob")
	if ok {
		t.Fatal("bob should not be verified")
	}

	// Re-registration and token reuse are both refused.
	err = env.Engine.RegisterIdentity(env.Ctx, "alice", "other-token")
	if !errors.Is(err, identity.ErrAlreadyRegistered) {
		t.Fatalf("want ErrAlreadyRegistered, got %v", err)
	}
	err = env.Engine.RegisterIdentity(env.Ctx, "mallory", "token-alice")
	if !errors.Is(err, identity.ErrTokenInUse) {
		t.Fatalf("want ErrTokenInUse, got %v", err)
	}
}

func TestCreateIssueFeeAndBounty(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{Payment: 110})
	if issue.ID != 1 {
		t.Fatalf("first issue id = %d, want 1", issue.ID)
	}
	if issue.Bounty != 100 {
		t.Fatalf("bounty = %d, want 100", issue.Bounty)
	}
	if !issue.Open() {
		t.Fatal("new issue should be open")
	}
	if issue.EasyDays != 7 || issue.MediumDays != 30 || issue.HardDays != 150 {
		t.Fatalf("durations not frozen from defaults: %+v", issue)
	}

	// Payment equal to the fee leaves nothing to escrow.
	_, err := env.Engine.CreateIssue(env.Ctx, engine.CreateIssueOptions{
		Creator: "alice", Reference: "ref", Payment: 10,
	})
	if !errors.Is(err, ledger.ErrInsufficientPayment) {
		t.Fatalf("want ErrInsufficientPayment, got %v", err)
	}

	// Fee rows land in the journal.
	journal, err := env.Engine.Ledger.IssueJournal(env.Ctx, issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	var sawFee bool
	for _, tr := range journal {
		if tr.Kind == ledger.KindFee && tr.Account == "operator" && tr.Amount == 10 {
			sawFee = true
		}
	}
	if !sawFee {
		t.Fatalf("fee row missing from journal: %+v", journal)
	}
}

func TestCreateIssueRequiresVerification(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateIssue(env.Ctx, engine.CreateIssueOptions{
		Creator: "ghost", Reference: "ref", Payment: 110,
	})
	if !errors.Is(err, identity.ErrNotVerified) {
		t.Fatalf("want ErrNotVerified, got %v", err)
	}
}

func TestIssueIDsMonotonic(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	for i := 1; i <= 3; i++ {
		issue := env.createIssue(t, "alice", engine.CreateIssueOptions{})
		if issue.ID != int64(i) {
			t.Fatalf("issue id = %d, want %d", issue.ID, i)
		}
	}
}

func TestTakeIssueStakeBounds(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{Payment: 110}) // bounty 100

	// Inclusive bounds: 5..20 of a 100 bounty.
	for _, stake := range []int64{4, 21} {
		_, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", stake)
		if !errors.Is(err, engine.ErrInvalidAmount) {
			t.Fatalf("stake %d: want ErrInvalidAmount, got %v", stake, err)
		}
	}
	taken, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 5)
	if err != nil {
		t.Fatalf("boundary stake 5 should be accepted: %v", err)
	}
	if taken.AssignedTo == nil || *taken.AssignedTo != "bob" {
		t.Fatalf("assigned_to = %v", taken.AssignedTo)
	}
	if taken.Deadline == nil {
		t.Fatal("deadline should be set")
	}
	wantDeadline := env.now.Add(7 * 24 * time.Hour).Format(time.RFC3339)
	if *taken.Deadline != wantDeadline {
		t.Fatalf("deadline = %s, want %s", *taken.Deadline, wantDeadline)
	}
}

func TestTakeIssueGuards(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	env.register(t, "carol")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{})

	// Creator cannot take its own issue.
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "alice", 10); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	// Unverified callers are rejected.
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "ghost", 10); !errors.Is(err, identity.ErrNotVerified) {
		t.Fatalf("want ErrNotVerified, got %v", err)
	}
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatalf("take: %v", err)
	}
	// Second take loses.
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "carol", 10); !errors.Is(err, engine.ErrAlreadyAssigned) {
		t.Fatalf("want ErrAlreadyAssigned, got %v", err)
	}
	if _, err := env.Engine.TakeIssue(env.Ctx, 999, "carol", 10); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestClaimAndRespond(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{})
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}

	// Only the contributor claims, only within (accepted,100].
	if _, err := env.Engine.SubmitPercentageClaim(env.Ctx, issue.ID, "alice", 50); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if _, err := env.Engine.SubmitPercentageClaim(env.Ctx, issue.ID, "bob", 0); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount for 0, got %v", err)
	}
	got, err := env.Engine.SubmitPercentageClaim(env.Ctx, issue.ID, "bob", 40)
	if err != nil {
		t.Fatal(err)
	}
	if got.ClaimedPercentage != 40 || !got.IsUnderReview {
		t.Fatalf("claim not recorded: %+v", got)
	}
	// Re-claiming while under review replaces the pending claim.
	got, err = env.Engine.SubmitPercentageClaim(env.Ctx, issue.ID, "bob", 60)
	if err != nil {
		t.Fatal(err)
	}
	if got.ClaimedPercentage != 60 {
		t.Fatalf("claim = %d, want 60", got.ClaimedPercentage)
	}

	// Only the creator responds.
	if _, err := env.Engine.RespondToClaim(env.Ctx, issue.ID, "bob", true); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	got, err = env.Engine.RespondToClaim(env.Ctx, issue.ID, "alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if got.PercentageCompleted != 60 || got.ClaimedPercentage != 0 || got.IsUnderReview {
		t.Fatalf("accept not applied: %+v", got)
	}
	// The claim was consumed; a second response finds nothing pending.
	if _, err := env.Engine.RespondToClaim(env.Ctx, issue.ID, "alice", true); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}

	// A new claim must beat the accepted percentage.
	if _, err := env.Engine.SubmitPercentageClaim(env.Ctx, issue.ID, "bob", 60); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
	if _, err := env.Engine.SubmitPercentageClaim(env.Ctx, issue.ID, "bob", 80); err != nil {
		t.Fatal(err)
	}
	// Rejection clears the claim and leaves the accepted value alone.
	got, err = env.Engine.RespondToClaim(env.Ctx, issue.ID, "alice", false)
	if err != nil {
		t.Fatal(err)
	}
	if got.PercentageCompleted != 60 || got.ClaimedPercentage != 0 || got.IsUnderReview {
		t.Fatalf("reject mishandled: %+v", got)
	}
}

func TestCompleteIssuePaysBountyPlusStake(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{Payment: 110})
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}

	var paidTo string
	var paidAmount int64
	var calls int
	env.Engine.Ledger.Transfer = func(ctx context.Context, recipient string, amount int64) error {
		paidTo, paidAmount = recipient, amount
		calls++
		return nil
	}

	got, err := env.Engine.CompleteIssue(env.Ctx, issue.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsCompleted {
		t.Fatal("issue should be completed")
	}
	if paidTo != "bob" || paidAmount != 110 || calls != 1 {
		t.Fatalf("payout = %d to %s in %d calls, want 110 to bob once", paidAmount, paidTo, calls)
	}

	// Completed is terminal: nothing moves it again, and the stake cannot
	// be settled twice.
	if _, err := env.Engine.CompleteIssue(env.Ctx, issue.ID, "alice"); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("re-complete: want ErrInvalidState, got %v", err)
	}
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("take completed: want ErrInvalidState, got %v", err)
	}
	if _, err := env.Engine.SubmitPercentageClaim(env.Ctx, issue.ID, "bob", 90); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("claim completed: want ErrInvalidState, got %v", err)
	}
	if _, err := env.Engine.IncreaseBounty(env.Ctx, issue.ID, "alice", 5); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("top up completed: want ErrInvalidState, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("external transfer fired %d times, want 1", calls)
	}
	if _, err := env.Engine.Repo.GetStake(env.Ctx, issue.ID, "bob"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stake row should be gone, got %v", err)
	}
}

func TestCompleteIssueGuards(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{})

	// Unassigned issues cannot be completed.
	if _, err := env.Engine.CompleteIssue(env.Ctx, issue.ID, "alice"); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteIssue(env.Ctx, issue.ID, "bob"); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestClaimExpiredIssueAboveThreshold(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{
		Payment:          110, // bounty 100
		MinCompletionPct: 50,
	})
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitPercentageClaim(env.Ctx, issue.ID, "bob", 60); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RespondToClaim(env.Ctx, issue.ID, "alice", true); err != nil {
		t.Fatal(err)
	}

	// Too early.
	if _, err := env.Engine.ClaimExpiredIssue(env.Ctx, issue.ID, "bob"); !errors.Is(err, engine.ErrDeadlineNotReached) {
		t.Fatalf("want ErrDeadlineNotReached, got %v", err)
	}
	env.advance(8 * 24 * time.Hour)

	var paidAmount int64
	env.Engine.Ledger.Transfer = func(ctx context.Context, recipient string, amount int64) error {
		paidAmount = amount
		return nil
	}
	got, err := env.Engine.ClaimExpiredIssue(env.Ctx, issue.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	// 60% accepted of a 100 bounty, above the 50% threshold: 60 fractional
	// bounty plus the 10 stake back.
	if paidAmount != 70 {
		t.Fatalf("payout = %d, want 70", paidAmount)
	}
	if got.Bounty != 40 {
		t.Fatalf("remaining bounty = %d, want 40", got.Bounty)
	}
	if !got.Open() {
		t.Fatal("issue should re-open")
	}
	if got.PercentageCompleted != 60 {
		t.Fatalf("accepted percentage should survive, got %d", got.PercentageCompleted)
	}
	if got.Deadline != nil {
		t.Fatal("deadline should clear")
	}

	// The exiting identity can never take it again; a fresh one can.
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 2); !errors.Is(err, engine.ErrAlreadyAttempted) {
		t.Fatalf("want ErrAlreadyAttempted, got %v", err)
	}
	env.register(t, "carol")
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "carol", 2); err != nil {
		t.Fatalf("fresh contributor should take re-opened issue: %v", err)
	}
}

func TestClaimExpiredIssueBelowThresholdForfeitsStake(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{
		Payment:          110, // bounty 100
		MinCompletionPct: 50,
	})
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitPercentageClaim(env.Ctx, issue.ID, "bob", 30); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RespondToClaim(env.Ctx, issue.ID, "alice", true); err != nil {
		t.Fatal(err)
	}
	env.advance(8 * 24 * time.Hour)

	var paidAmount int64
	env.Engine.Ledger.Transfer = func(ctx context.Context, recipient string, amount int64) error {
		paidAmount = amount
		return nil
	}
	got, err := env.Engine.ClaimExpiredIssue(env.Ctx, issue.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	// 30% of 100 paid out, stake of 10 forfeited into the pot:
	// 100 - 30 + 10 = 80 remaining.
	if paidAmount != 30 {
		t.Fatalf("payout = %d, want 30", paidAmount)
	}
	if got.Bounty != 80 {
		t.Fatalf("remaining bounty = %d, want 80", got.Bounty)
	}
	// Settle-once: the stake row is gone.
	if _, err := env.Engine.Repo.GetStake(env.Ctx, issue.ID, "bob"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stake row should be gone, got %v", err)
	}
	// A second expiry claim has no assignment to act on.
	if _, err := env.Engine.ClaimExpiredIssue(env.Ctx, issue.ID, "bob"); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
}

func TestIncreaseBounty(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{Payment: 110})

	if _, err := env.Engine.IncreaseBounty(env.Ctx, issue.ID, "bob", 50); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if _, err := env.Engine.IncreaseBounty(env.Ctx, issue.ID, "alice", 0); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
	got, err := env.Engine.IncreaseBounty(env.Ctx, issue.ID, "alice", 50)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounty != 150 {
		t.Fatalf("bounty = %d, want 150", got.Bounty)
	}

	// Stake bounds for later takers follow the new bounty.
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 30); err != nil {
		t.Fatalf("stake 30 of bounty 150 is within [7,30]: %v", err)
	}
}

func TestIncreaseDeadlineAndDifficulty(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{Difficulty: domain.Easy})

	// Both require a live assignment.
	if _, err := env.Engine.IncreaseDeadline(env.Ctx, issue.ID, "alice", 3); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
	taken, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10)
	if err != nil {
		t.Fatal(err)
	}

	got, err := env.Engine.IncreaseDeadline(env.Ctx, issue.ID, "alice", 3)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := time.Parse(time.RFC3339, *taken.Deadline)
	after, _ := time.Parse(time.RFC3339, *got.Deadline)
	if after.Sub(before) != 3*24*time.Hour {
		t.Fatalf("deadline moved by %s, want 72h", after.Sub(before))
	}

	// Difficulty only goes up, and the deadline stays where it is.
	if _, err := env.Engine.IncreaseDifficulty(env.Ctx, issue.ID, "alice", domain.Easy); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
	raised, err := env.Engine.IncreaseDifficulty(env.Ctx, issue.ID, "alice", domain.Hard)
	if err != nil {
		t.Fatal(err)
	}
	if raised.Difficulty != domain.Hard {
		t.Fatalf("difficulty = %s, want hard", raised.Difficulty)
	}
	if *raised.Deadline != *got.Deadline {
		t.Fatalf("deadline changed on difficulty raise: %s -> %s", *got.Deadline, *raised.Deadline)
	}
}

func TestGradeByAI(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{})

	if _, err := env.Engine.GradeByAI(env.Ctx, issue.ID, "alice", 90); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	// Needs an assignment to grade.
	if _, err := env.Engine.GradeByAI(env.Ctx, issue.ID, "oracle", 90); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.GradeByAI(env.Ctx, issue.ID, "oracle", 101); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
	got, err := env.Engine.GradeByAI(env.Ctx, issue.ID, "oracle", 85)
	if err != nil {
		t.Fatal(err)
	}
	if got.ConfidenceScore != 85 {
		t.Fatalf("confidence = %d, want 85", got.ConfidenceScore)
	}

	// The score is advisory: expiry resets it along with the assignment.
	env.advance(8 * 24 * time.Hour)
	expired, err := env.Engine.ClaimExpiredIssue(env.Ctx, issue.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if expired.ConfidenceScore != 0 {
		t.Fatalf("confidence should reset on expiry, got %d", expired.ConfidenceScore)
	}
}

func TestCustodyBalances(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{Payment: 110})
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}
	// In: 110 deposit + 10 stake. Out: 10 fee. Held: 110.
	total, err := env.Engine.Ledger.TotalCustody(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 110 {
		t.Fatalf("custody = %d, want 110", total)
	}
	if _, err := env.Engine.CompleteIssue(env.Ctx, issue.ID, "alice"); err != nil {
		t.Fatal(err)
	}
	total, err = env.Engine.Ledger.TotalCustody(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("custody after full payout = %d, want 0", total)
	}
}

func TestContributorHistory(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	env.register(t, "carol")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{MinCompletionPct: 50})

	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}
	env.advance(8 * 24 * time.Hour)
	if _, err := env.Engine.ClaimExpiredIssue(env.Ctx, issue.ID, "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "carol", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteIssue(env.Ctx, issue.ID, "alice"); err != nil {
		t.Fatal(err)
	}

	history, err := env.Engine.Repo.ListContributors(env.Ctx, issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[0].Account != "bob" || history[0].Outcome != "expired" {
		t.Fatalf("first entry: %+v", history[0])
	}
	if history[1].Account != "carol" || history[1].Outcome != "completed" {
		t.Fatalf("second entry: %+v", history[1])
	}
}

func TestEventLog(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{})
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteIssue(env.Ctx, issue.ID, "alice"); err != nil {
		t.Fatal(err)
	}

	events, err := env.Engine.Repo.EventsAfter(env.Ctx, 100, 0, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	want := []string{
		"identity.registered", "identity.registered",
		"fee.paid", "issue.created",
		"issue.assigned", "issue.completed",
	}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestAttemptRecordedAtTake(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	issue := env.createIssue(t, "alice", engine.CreateIssueOptions{})

	attempted, err := env.Engine.Repo.HasAttempted(env.Ctx, issue.ID, "bob")
	if err != nil || attempted {
		t.Fatalf("no attempt expected before take: %v %v", attempted, err)
	}
	if _, err := env.Engine.TakeIssue(env.Ctx, issue.ID, "bob", 10); err != nil {
		t.Fatal(err)
	}
	attempted, err = env.Engine.Repo.HasAttempted(env.Ctx, issue.ID, "bob")
	if err != nil || !attempted {
		t.Fatalf("bob's attempt should be recorded: %v %v", attempted, err)
	}
	attempted, err = env.Engine.Repo.HasAttempted(env.Ctx, issue.ID, "carol")
	if err != nil || attempted {
		t.Fatalf("carol has not attempted: %v %v", attempted, err)
	}
}
