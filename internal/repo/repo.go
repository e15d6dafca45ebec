package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bountyline/internal/domain"
)

// Repo owns all reads and writes of escrow state. Mutations go through
// *sql.Tx variants so the engine controls transaction boundaries.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const issueColumns = `id,creator,reference,bounty,assigned_to,is_completed,percentage_completed,claimed_percentage,is_under_review,difficulty,deadline,easy_days,medium_days,hard_days,min_completion_pct,confidence_score,created_at,updated_at`

type issueScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row issueScanner) (domain.Issue, error) {
	var i domain.Issue
	var assignedTo, deadline sql.NullString
	var completed, underReview int64
	var difficulty int64
	err := row.Scan(&i.ID, &i.Creator, &i.Reference, &i.Bounty, &assignedTo, &completed,
		&i.PercentageCompleted, &i.ClaimedPercentage, &underReview, &difficulty, &deadline,
		&i.EasyDays, &i.MediumDays, &i.HardDays, &i.MinCompletionPct, &i.ConfidenceScore,
		&i.CreatedAt, &i.UpdatedAt)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	if err != nil {
		return i, err
	}
	if assignedTo.Valid {
		i.AssignedTo = &assignedTo.String
	}
	if deadline.Valid {
		i.Deadline = &deadline.String
	}
	i.IsCompleted = completed != 0
	i.IsUnderReview = underReview != 0
	i.Difficulty = domain.Difficulty(difficulty)
	return i, nil
}

// InsertIssue stores a new issue and returns its assigned id. SQLite
// AUTOINCREMENT guarantees ids are 1-based, monotonic and never reused.
func (r Repo) InsertIssue(ctx context.Context, tx *sql.Tx, i domain.Issue) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO issues(creator,reference,bounty,assigned_to,is_completed,percentage_completed,claimed_percentage,is_under_review,difficulty,deadline,easy_days,medium_days,hard_days,min_completion_pct,confidence_score,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		i.Creator, i.Reference, i.Bounty, nullableStringPtr(i.AssignedTo), boolInt(i.IsCompleted),
		i.PercentageCompleted, i.ClaimedPercentage, boolInt(i.IsUnderReview), int64(i.Difficulty),
		nullableStringPtr(i.Deadline), i.EasyDays, i.MediumDays, i.HardDays, i.MinCompletionPct,
		i.ConfidenceScore, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateIssue persists every mutable field of an issue.
func (r Repo) UpdateIssue(ctx context.Context, tx *sql.Tx, i domain.Issue) error {
	res, err := tx.ExecContext(ctx, `UPDATE issues SET bounty=?, assigned_to=?, is_completed=?, percentage_completed=?, claimed_percentage=?, is_under_review=?, difficulty=?, deadline=?, confidence_score=?, updated_at=? WHERE id=?`,
		i.Bounty, nullableStringPtr(i.AssignedTo), boolInt(i.IsCompleted), i.PercentageCompleted,
		i.ClaimedPercentage, boolInt(i.IsUnderReview), int64(i.Difficulty), nullableStringPtr(i.Deadline),
		i.ConfidenceScore, i.UpdatedAt, i.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetIssue(ctx context.Context, id int64) (domain.Issue, error) {
	return scanIssue(r.DB.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id=?`, id))
}

func (r Repo) GetIssueTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Issue, error) {
	return scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id=?`, id))
}

// IssueFilters narrows ListIssues. Zero values mean no filter.
type IssueFilters struct {
	Creator    string
	AssignedTo string
	Open       *bool
	Completed  *bool
	Limit      int
}

func (r Repo) ListIssues(ctx context.Context, f IssueFilters) ([]domain.Issue, error) {
	var clauses []string
	var args []any
	if f.Creator != "" {
		clauses = append(clauses, "creator=?")
		args = append(args, f.Creator)
	}
	if f.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.Open != nil {
		if *f.Open {
			clauses = append(clauses, "assigned_to IS NULL AND is_completed=0")
		} else {
			clauses = append(clauses, "(assigned_to IS NOT NULL OR is_completed=1)")
		}
	}
	if f.Completed != nil {
		clauses = append(clauses, "is_completed=?")
		args = append(args, boolInt(*f.Completed))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + issueColumns + ` FROM issues ` + where + ` ORDER BY id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

// --- stakes ---

func (r Repo) InsertStake(ctx context.Context, tx *sql.Tx, s domain.Stake) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stakes(issue_id,account,amount,created_at) VALUES (?,?,?,?)`,
		s.IssueID, s.Account, s.Amount, s.CreatedAt)
	return err
}

func (r Repo) GetStakeTx(ctx context.Context, tx *sql.Tx, issueID int64, account string) (domain.Stake, error) {
	var s domain.Stake
	err := tx.QueryRowContext(ctx, `SELECT issue_id,account,amount,created_at FROM stakes WHERE issue_id=? AND account=?`, issueID, account).
		Scan(&s.IssueID, &s.Account, &s.Amount, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) GetStake(ctx context.Context, issueID int64, account string) (domain.Stake, error) {
	var s domain.Stake
	err := r.DB.QueryRowContext(ctx, `SELECT issue_id,account,amount,created_at FROM stakes WHERE issue_id=? AND account=?`, issueID, account).
		Scan(&s.IssueID, &s.Account, &s.Amount, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// DeleteStake settles a stake row. A stake is withdrawable exactly once:
// the returned error is ErrNotFound when it was already settled.
func (r Repo) DeleteStake(ctx context.Context, tx *sql.Tx, issueID int64, account string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM stakes WHERE issue_id=? AND account=?`, issueID, account)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TotalStaked is the aggregate escrowed stake balance for an account.
func (r Repo) TotalStaked(ctx context.Context, account string) (int64, error) {
	var total int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount),0) FROM stakes WHERE account=?`, account).Scan(&total)
	return total, err
}

// --- attempts ---

func (r Repo) RecordAttempt(ctx context.Context, tx *sql.Tx, issueID int64, account, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO attempts(issue_id,account,created_at) VALUES (?,?,?)`,
		issueID, account, now)
	return err
}

func (r Repo) HasAttempted(ctx context.Context, issueID int64, account string) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT 1 FROM attempts WHERE issue_id=? AND account=? LIMIT 1`, issueID, account)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) HasAttemptedTx(ctx context.Context, tx *sql.Tx, issueID int64, account string) (bool, error) {
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM attempts WHERE issue_id=? AND account=? LIMIT 1`, issueID, account)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// --- contributor history ---

func (r Repo) InsertContributor(ctx context.Context, tx *sql.Tx, c domain.Contributor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO contributors(issue_id,account,assigned_at,outcome) VALUES (?,?,?,?)`,
		c.IssueID, c.Account, c.AssignedAt, c.Outcome)
	return err
}

// CloseContributor marks the active history row for (issue, account) with
// its exit outcome.
func (r Repo) CloseContributor(ctx context.Context, tx *sql.Tx, issueID int64, account, exitedAt, outcome string) error {
	_, err := tx.ExecContext(ctx, `UPDATE contributors SET exited_at=?, outcome=? WHERE issue_id=? AND account=? AND outcome='active'`,
		exitedAt, outcome, issueID, account)
	return err
}

func (r Repo) ListContributors(ctx context.Context, issueID int64) ([]domain.Contributor, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT issue_id,account,assigned_at,exited_at,outcome FROM contributors WHERE issue_id=? ORDER BY id ASC`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Contributor
	for rows.Next() {
		var c domain.Contributor
		var exited sql.NullString
		if err := rows.Scan(&c.IssueID, &c.Account, &c.AssignedAt, &exited, &c.Outcome); err != nil {
			return nil, err
		}
		if exited.Valid {
			c.ExitedAt = &exited.String
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// --- events ---

// LatestEvents returns events newest first, optionally filtered.
func (r Repo) LatestEvents(ctx context.Context, limit int, issueID int64, evtType string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if issueID > 0 {
		clauses = append(clauses, "issue_id=?")
		args = append(args, issueID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,issue_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.scanEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in
// ascending order, optionally filtered like LatestEvents. Webhook
// dispatch and SDK tailing paginate with this.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, issueID int64, evtType string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"id>?"}
	args := []any{cursor}
	if issueID > 0 {
		clauses = append(clauses, "issue_id=?")
		args = append(args, issueID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,issue_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	return r.scanEvents(ctx, query, args...)
}

// LatestEventID returns the most recent event id, 0 when the log is empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func (r Repo) scanEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var issueID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &issueID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		if issueID.Valid {
			e.IssueID = &issueID.Int64
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- expiry predicate ---

// Expirable reports whether the current contributor could claim expiry
// right now.
func Expirable(i domain.Issue, now time.Time) bool {
	if i.AssignedTo == nil || i.IsCompleted || i.Deadline == nil {
		return false
	}
	deadline, err := time.Parse(time.RFC3339, *i.Deadline)
	if err != nil {
		return false
	}
	return now.After(deadline)
}

// --- helpers ---

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
