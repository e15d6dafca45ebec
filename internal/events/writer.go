package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types emitted by the engine, consumed by external indexers.
const (
	TypeIdentityRegistered = "identity.registered"
	TypeIssueCreated       = "issue.created"
	TypeIssueAssigned      = "issue.assigned"
	TypeIssueCompleted     = "issue.completed"
	TypeBountyIncreased    = "bounty.increased"
	TypeDeadlineExtended   = "deadline.extended"
	TypeDeadlineExpired    = "deadline.expired"
	TypeDifficultyRaised   = "difficulty.raised"
	TypeStakeForfeited     = "stake.forfeited"
	TypeFeePaid            = "fee.paid"
	TypeClaimSubmitted     = "claim.submitted"
	TypeClaimResponded     = "claim.responded"
	TypeIssueGraded        = "issue.graded"
)

// Writer appends to the events table inside the caller's transaction, so
// an event is visible iff the mutation it describes committed.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event row. issueID of 0 means the event is not bound
// to a single issue (identity registration).
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, issueID int64, actorID string, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,issue_id,actor_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, evtType, nullableID(issueID), actorID, string(data))
	return err
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
