package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bountyline/internal/domain"
)

var (
	// ErrNotVerified gates every value-moving operation.
	ErrNotVerified = errors.New("account not verified")
	// ErrAlreadyRegistered fires when an account tries to bind a second token.
	ErrAlreadyRegistered = errors.New("account already registered")
	// ErrTokenInUse fires when a token is already bound to a different account.
	ErrTokenInUse = errors.New("uniqueness token already in use")
)

// Registry keeps the immutable bijection between accounts and uniqueness
// tokens. Tokens are issued by an external verifier; the registry only
// records them and checks uniqueness.
type Registry struct {
	DB *sql.DB
}

// Register binds an account to its token. Both sides of the bijection are
// append-only: neither the account's token nor the token's owner can ever
// change afterwards.
func (s Registry) Register(ctx context.Context, tx *sql.Tx, account, token, now string) error {
	account = strings.TrimSpace(account)
	token = strings.TrimSpace(token)
	if account == "" {
		return errors.New("account required")
	}
	if token == "" {
		return errors.New("token required")
	}
	var existing string
	err := tx.QueryRowContext(ctx, `SELECT token FROM verifications WHERE account=?`, account).Scan(&existing)
	if err == nil {
		return fmt.Errorf("account %s: %w", account, ErrAlreadyRegistered)
	}
	if err != sql.ErrNoRows {
		return err
	}
	var owner string
	err = tx.QueryRowContext(ctx, `SELECT account FROM verifications WHERE token=?`, token).Scan(&owner)
	if err == nil {
		return ErrTokenInUse
	}
	if err != sql.ErrNoRows {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO verifications(account,token,created_at) VALUES (?,?,?)`, account, token, now)
	return err
}

// IsVerified is a pure lookup with no side effects.
func (s Registry) IsVerified(ctx context.Context, account string) (bool, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT 1 FROM verifications WHERE account=? LIMIT 1`, account)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// RequireVerified is the gate used by the engine inside its transaction.
func (s Registry) RequireVerified(ctx context.Context, tx *sql.Tx, account string) error {
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM verifications WHERE account=? LIMIT 1`, account)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return fmt.Errorf("account %s: %w", account, ErrNotVerified)
	}
	return err
}

// Get returns the verification record for an account.
func (s Registry) Get(ctx context.Context, account string) (domain.Verification, error) {
	var v domain.Verification
	err := s.DB.QueryRowContext(ctx, `SELECT account,token,created_at FROM verifications WHERE account=?`, account).
		Scan(&v.Account, &v.Token, &v.CreatedAt)
	return v, err
}
