package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EntryType classifies a ledger entry. Credit types add to the balance,
// debit types remove from it.
type EntryType string

const (
	EntryTypeGrant        EntryType = "GRANT"
	EntryTypePurchase     EntryType = "PURCHASE"
	EntryTypeConsumption  EntryType = "CONSUMPTION"
	EntryTypeBonus        EntryType = "BONUS"
	EntryTypeExpiry       EntryType = "EXPIRY"
	EntryTypeMonthlyReset EntryType = "MONTHLY_RESET"
)

func (t EntryType) IsCredit() bool {
	switch t {
	case EntryTypeGrant, EntryTypePurchase, EntryTypeBonus, EntryTypeMonthlyReset:
		return true
	}
	return false
}

func (t EntryType) IsDebit() bool {
	return t == EntryTypeConsumption || t == EntryTypeExpiry
}

// CreditBalance is the materialized state of a user's ledger.
// Available always equals LifetimeEarned - LifetimeSpent and never drops below zero.
type CreditBalance struct {
	UserID         string    `json:"user_id" gorm:"primaryKey;column:user_id;type:text"`
	Available      int64     `json:"available" gorm:"not null;default:0"`
	LifetimeEarned int64     `json:"lifetime_earned" gorm:"not null;default:0"`
	LifetimeSpent  int64     `json:"lifetime_spent" gorm:"not null;default:0"`
	LastSequence   int64     `json:"last_sequence" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null"`
}

func (CreditBalance) TableName() string { return "credit_balances" }

// CreditLedgerEntry is one append-only movement. Per user, entries ordered by
// Sequence satisfy BalanceAfter[n] = BalanceAfter[n-1] + Amount[n].
type CreditLedgerEntry struct {
	ID           snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID       string            `json:"user_id" gorm:"type:text;not null;uniqueIndex:credit_ledger_entries_user_sequence,priority:1"`
	Sequence     int64             `json:"sequence" gorm:"not null;uniqueIndex:credit_ledger_entries_user_sequence,priority:2"`
	Amount       int64             `json:"amount" gorm:"not null"`
	BalanceAfter int64             `json:"balance_after" gorm:"not null"`
	EntryType    EntryType         `json:"type" gorm:"column:entry_type;type:text;not null"`
	SourceDetail string            `json:"source_detail" gorm:"type:text;not null;default:''"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at" gorm:"not null"`
}

func (CreditLedgerEntry) TableName() string { return "credit_ledger_entries" }
