package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"bountyline/internal/config"
	"bountyline/internal/domain"
)

var (
	// ErrInsufficientPayment fires when a deposit does not strictly exceed
	// the protocol fee.
	ErrInsufficientPayment = errors.New("payment does not cover protocol fee")
	// ErrZeroAmount fires on non-positive top-ups.
	ErrZeroAmount = errors.New("amount must be positive")
	// ErrTransferInProgress means a payout re-entered the ledger before the
	// previous one settled.
	ErrTransferInProgress = errors.New("transfer already in progress")
)

// Transfer journal kinds.
const (
	KindDeposit = "deposit"
	KindFee     = "fee"
	KindStake   = "stake"
	KindTopUp   = "topup"
	KindPayout  = "payout"
)

// TransferFunc performs the external value movement. It is invoked only
// after the state transaction that marks the funds as spent has committed
// (checks-effects-interactions).
type TransferFunc func(ctx context.Context, recipient string, amount int64) error

// Ledger holds and moves the native value unit. Every movement is recorded
// in the append-only transfers journal inside the engine's transaction;
// the external TransferFunc is the only interaction that happens outside
// it.
type Ledger struct {
	DB       *sql.DB
	Config   *config.Config
	Transfer TransferFunc
	Now      func() time.Time

	// issue id -> in-flight marker; payouts for distinct issues may
	// overlap, re-entry on the same issue is rejected.
	paying sync.Map
}

func (l *Ledger) now() string {
	if l.Now != nil {
		return l.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// NetOfFee validates a deposit against the protocol fee and returns the
// amount left for the bounty.
func (l *Ledger) NetOfFee(payment int64) (int64, error) {
	fee := l.Config.Protocol.FeeAmount
	if payment <= fee {
		return 0, fmt.Errorf("payment %d, fee %d: %w", payment, fee, ErrInsufficientPayment)
	}
	return payment - fee, nil
}

// RecordDeposit journals an issue deposit and the fee skim forwarded to
// the operator account.
func (l *Ledger) RecordDeposit(ctx context.Context, tx *sql.Tx, issueID int64, payer string, payment int64) error {
	if err := l.record(ctx, tx, KindDeposit, issueID, payer, payment); err != nil {
		return err
	}
	return l.record(ctx, tx, KindFee, issueID, l.Config.Protocol.FeeRecipient, l.Config.Protocol.FeeAmount)
}

// RecordTopUp journals a bounty top-up.
func (l *Ledger) RecordTopUp(ctx context.Context, tx *sql.Tx, issueID int64, payer string, amount int64) error {
	if amount <= 0 {
		return ErrZeroAmount
	}
	return l.record(ctx, tx, KindTopUp, issueID, payer, amount)
}

// RecordStake journals a contributor's stake entering escrow.
func (l *Ledger) RecordStake(ctx context.Context, tx *sql.Tx, issueID int64, contributor string, amount int64) error {
	if amount < 0 {
		return ErrZeroAmount
	}
	return l.record(ctx, tx, KindStake, issueID, contributor, amount)
}

// RecordPayout journals funds leaving custody. This is the "effects" half
// of a payout and runs inside the engine's transaction.
func (l *Ledger) RecordPayout(ctx context.Context, tx *sql.Tx, issueID int64, recipient string, amount int64) error {
	if amount < 0 {
		return ErrZeroAmount
	}
	return l.record(ctx, tx, KindPayout, issueID, recipient, amount)
}

// PayOut issues the external transfer for funds the committed state has
// already marked as spent. The guard rejects re-entry per issue so one
// logical operation can never trigger a second payout for the same issue
// before the first settles, while payouts for other issues proceed.
func (l *Ledger) PayOut(ctx context.Context, issueID int64, recipient string, amount int64) error {
	if amount == 0 || l.Transfer == nil {
		return nil
	}
	if _, inFlight := l.paying.LoadOrStore(issueID, struct{}{}); inFlight {
		return ErrTransferInProgress
	}
	defer l.paying.Delete(issueID)
	return l.Transfer(ctx, recipient, amount)
}

func (l *Ledger) record(ctx context.Context, tx *sql.Tx, kind string, issueID int64, account string, amount int64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO transfers(ts,kind,issue_id,account,amount) VALUES (?,?,?,?,?)`,
		l.now(), kind, issueID, account, amount)
	return err
}

// TotalCustody derives the value currently held from the journal:
// everything ever paid in minus everything ever paid out.
func (l *Ledger) TotalCustody(ctx context.Context) (int64, error) {
	var in, out int64
	err := l.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN kind IN (?,?,?) THEN amount ELSE 0 END),0),
		        COALESCE(SUM(CASE WHEN kind IN (?,?) THEN amount ELSE 0 END),0) FROM transfers`,
		KindDeposit, KindTopUp, KindStake, KindFee, KindPayout).Scan(&in, &out)
	if err != nil {
		return 0, err
	}
	return in - out, nil
}

// IssueJournal lists the journal rows for one issue, oldest first.
func (l *Ledger) IssueJournal(ctx context.Context, issueID int64) ([]domain.Transfer, error) {
	rows, err := l.DB.QueryContext(ctx, `SELECT id,ts,kind,issue_id,account,amount FROM transfers WHERE issue_id=? ORDER BY id ASC`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var issue sql.NullInt64
		if err := rows.Scan(&t.ID, &t.TS, &t.Kind, &issue, &t.Account, &t.Amount); err != nil {
			return nil, err
		}
		if issue.Valid {
			t.IssueID = &issue.Int64
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
