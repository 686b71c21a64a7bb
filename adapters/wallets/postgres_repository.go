package wallets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/invoicegate/core"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS user_wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  wallet_address TEXT NOT NULL,
  network TEXT NOT NULL,
  label TEXT NOT NULL DEFAULT '',
  is_primary BOOLEAN NOT NULL DEFAULT false,
  is_verified BOOLEAN NOT NULL DEFAULT false,
  consent_given BOOLEAN NOT NULL DEFAULT false,
  consent_date TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (wallet_address, network)
);
CREATE UNIQUE INDEX IF NOT EXISTS user_wallets_one_primary ON user_wallets (user_id) WHERE is_primary;
CREATE INDEX IF NOT EXISTS user_wallets_user_created ON user_wallets (user_id, created_at);
`

const walletColumns = `id, user_id, wallet_address, network, label, is_primary, is_verified, consent_given, consent_date, created_at, updated_at`

// PostgresRepository persists user wallets in Postgres.
// Writes for one user are serialized with a transaction-scoped advisory lock.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects and initializes schema
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	r := &PostgresRepository{pool: pool}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init wallet schema: %w", err)
	}
	return r, nil
}

// Close releases the pool
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func lockUser(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID)
	return err
}

// Create inserts the wallet; it is primary when the user has no other wallet
func (r *PostgresRepository) Create(ctx context.Context, wallet *core.UserWallet) (*core.UserWallet, error) {
	w := *wallet
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	w.WalletAddress = core.NormalizeAddress(w.WalletAddress)
	w.Network = core.NormalizeNetwork(w.Network)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, w.UserID); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
INSERT INTO user_wallets (id, user_id, wallet_address, network, label, is_primary, is_verified, consent_given, consent_date)
VALUES ($1, $2, $3, $4, $5, NOT EXISTS (SELECT 1 FROM user_wallets WHERE user_id = $2), $6, $7, $8)
RETURNING is_primary, created_at, updated_at`,
			w.ID, w.UserID, w.WalletAddress, w.Network, w.Label, w.IsVerified, w.ConsentGiven, w.ConsentDate,
		).Scan(&w.IsPrimary, &w.CreatedAt, &w.UpdatedAt)
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &w, nil
}

// Update persists label, verification and consent fields
func (r *PostgresRepository) Update(ctx context.Context, wallet *core.UserWallet) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE user_wallets SET label = $3, is_verified = $4, consent_given = $5, consent_date = $6, updated_at = now()
WHERE id = $1 AND user_id = $2`,
		wallet.ID, wallet.UserID, wallet.Label, wallet.IsVerified, wallet.ConsentGiven, wallet.ConsentDate)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrWalletNotFound
	}
	return nil
}

// FindByAddress returns the wallet linked as (address, network)
func (r *PostgresRepository) FindByAddress(ctx context.Context, address, network string) (*core.UserWallet, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM user_wallets WHERE wallet_address = $1 AND network = $2`,
		core.NormalizeAddress(address), core.NormalizeNetwork(network))
	w, err := scanWallet(row)
	if err != nil {
		return nil, mapError(err)
	}
	return w, nil
}

// FindOwner returns the user owning address on any network
func (r *PostgresRepository) FindOwner(ctx context.Context, address string) (string, error) {
	var userID string
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM user_wallets WHERE wallet_address = $1 ORDER BY is_primary DESC, created_at ASC LIMIT 1`,
		core.NormalizeAddress(address)).Scan(&userID)
	if err != nil {
		return "", mapError(err)
	}
	return userID, nil
}

// ListByUser returns the user's wallets, oldest first
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*core.UserWallet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+walletColumns+` FROM user_wallets WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var list []*core.UserWallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, mapError(err)
		}
		list = append(list, w)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return list, nil
}

// SetPrimary demotes every other wallet of the user and promotes walletID in one transaction
func (r *PostgresRepository) SetPrimary(ctx context.Context, userID, walletID string) (*core.UserWallet, error) {
	var out *core.UserWallet
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := scanWallet(tx.QueryRow(ctx,
			`SELECT `+walletColumns+` FROM user_wallets WHERE id = $1 AND user_id = $2`, walletID, userID)); err != nil {
			return err
		}
		// Demote first: the partial unique index forbids two primaries even mid-statement
		if _, err := tx.Exec(ctx,
			`UPDATE user_wallets SET is_primary = false, updated_at = now() WHERE user_id = $1 AND is_primary AND id <> $2`,
			userID, walletID); err != nil {
			return err
		}
		w, err := scanWallet(tx.QueryRow(ctx,
			`UPDATE user_wallets SET is_primary = true, updated_at = now() WHERE id = $1 RETURNING `+walletColumns, walletID))
		if err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Delete removes walletID if it belongs to userID and promotes the oldest
// remaining wallet when the primary was removed
func (r *PostgresRepository) Delete(ctx context.Context, userID, walletID string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		var wasPrimary bool
		if err := tx.QueryRow(ctx,
			`DELETE FROM user_wallets WHERE id = $1 AND user_id = $2 RETURNING is_primary`,
			walletID, userID).Scan(&wasPrimary); err != nil {
			return err
		}
		if !wasPrimary {
			return nil
		}
		_, err := tx.Exec(ctx, `
UPDATE user_wallets SET is_primary = true, updated_at = now()
WHERE id = (SELECT id FROM user_wallets WHERE user_id = $1 ORDER BY created_at ASC, id ASC LIMIT 1)`, userID)
		return err
	})
	return mapError(err)
}

func scanWallet(row pgx.Row) (*core.UserWallet, error) {
	var (
		w           core.UserWallet
		consentDate *time.Time
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.WalletAddress, &w.Network, &w.Label, &w.IsPrimary,
		&w.IsVerified, &w.ConsentGiven, &consentDate, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.ConsentDate = consentDate
	return &w, nil
}

// mapError translates driver errors into domain errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrWalletNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.ErrWalletConflict
	}
	return fmt.Errorf("wallet repository: %w", err)
}
