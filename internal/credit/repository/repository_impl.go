package repository

import (
	"context"
	"time"

	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() creditdomain.Repository {
	return &repo{}
}

func (r *repo) InsertBalance(ctx context.Context, db *gorm.DB, b *creditdomain.CreditBalance) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_balances (user_id, available, lifetime_earned, lifetime_spent, last_sequence, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.UserID,
		b.Available,
		b.LifetimeEarned,
		b.LifetimeSpent,
		b.LastSequence,
		b.CreatedAt,
		b.UpdatedAt,
	).Error
}

func (r *repo) FindBalance(ctx context.Context, db *gorm.DB, userID string) (*creditdomain.CreditBalance, error) {
	var balances []creditdomain.CreditBalance
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, available, lifetime_earned, lifetime_spent, last_sequence, created_at, updated_at
		 FROM credit_balances WHERE user_id = ?`,
		userID,
	).Scan(&balances).Error
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return nil, nil
	}
	return &balances[0], nil
}

func (r *repo) CreditBalance(ctx context.Context, db *gorm.DB, userID string, amount int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE credit_balances
		 SET available = available + ?,
		     lifetime_earned = lifetime_earned + ?,
		     last_sequence = last_sequence + 1,
		     updated_at = ?
		 WHERE user_id = ?`,
		amount,
		amount,
		now,
		userID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) DebitBalance(ctx context.Context, db *gorm.DB, userID string, amount int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE credit_balances
		 SET available = available - ?,
		     lifetime_spent = lifetime_spent + ?,
		     last_sequence = last_sequence + 1,
		     updated_at = ?
		 WHERE user_id = ? AND available >= ?`,
		amount,
		amount,
		now,
		userID,
		amount,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, e *creditdomain.CreditLedgerEntry) error {
	metadata := e.Metadata
	if metadata == nil {
		metadata = datatypes.JSONMap{}
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_ledger_entries (id, user_id, sequence, amount, balance_after, entry_type, source_detail, metadata, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UserID,
		e.Sequence,
		e.Amount,
		e.BalanceAfter,
		string(e.EntryType),
		e.SourceDetail,
		metadata,
		e.ExpiresAt,
		e.CreatedAt,
	).Error
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, userID string, afterSequence, uptoSequence int64, limit int) ([]creditdomain.CreditLedgerEntry, error) {
	query := `SELECT id, user_id, sequence, amount, balance_after, entry_type, source_detail, metadata, expires_at, created_at
		 FROM credit_ledger_entries
		 WHERE user_id = ? AND sequence > ?`
	args := []any{userID, afterSequence}
	if uptoSequence > 0 {
		query += ` AND sequence <= ?`
		args = append(args, uptoSequence)
	}
	query += ` ORDER BY sequence ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var entries []creditdomain.CreditLedgerEntry
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListUserIDs(ctx context.Context, db *gorm.DB, afterUserID string, limit int) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Raw(
		`SELECT user_id FROM credit_balances WHERE user_id > ? ORDER BY user_id ASC LIMIT ?`,
		afterUserID,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
