package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Service interface {
	OpenAccount(ctx context.Context, req OpenAccountRequest) (*CreditBalance, error)
	Grant(ctx context.Context, req GrantRequest) (*CreditLedgerEntry, error)
	TryDebit(ctx context.Context, req DebitRequest) (*CreditLedgerEntry, error)
	GetBalance(ctx context.Context, userID string) (*CreditBalance, error)
	ListEntries(ctx context.Context, req ListEntriesRequest) (*ListEntriesResponse, error)
	Reconcile(ctx context.Context, userID string) (*ReconcileResult, error)
	ListUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error)
}

type OpenAccountRequest struct {
	UserID string `json:"user_id"`
	// InitialGrant overrides the configured signup grant when set. Zero opens an empty account.
	InitialGrant *int64 `json:"initial_grant,omitempty"`
	SourceDetail string `json:"source_detail,omitempty"`
}

type GrantRequest struct {
	UserID       string         `json:"user_id"`
	Amount       int64          `json:"amount"`
	Type         EntryType      `json:"type"`
	SourceDetail string         `json:"source_detail"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type DebitRequest struct {
	UserID       string         `json:"user_id"`
	Amount       int64          `json:"amount"`
	Type         EntryType      `json:"type"`
	SourceDetail string         `json:"source_detail"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type ListEntriesRequest struct {
	UserID        string `json:"user_id"`
	AfterSequence int64  `json:"after_sequence"`
	Limit         int    `json:"limit"`
}

type ListEntriesResponse struct {
	Entries      []CreditLedgerEntry `json:"entries"`
	NextSequence int64               `json:"next_sequence,omitempty"`
	HasMore      bool                `json:"has_more"`
}

// ReconcileResult compares the stored balance with a fold over the ledger.
// Matched is the headline answer: stored available and lifetime totals equal
// the sums over the entries. Consistent additionally requires the sequence and
// the balance_after chain to agree.
type ReconcileResult struct {
	UserID             string `json:"user_id"`
	Matched            bool   `json:"matched"`
	Consistent         bool   `json:"consistent"`
	StoredAvailable    int64  `json:"stored_available"`
	LedgerAvailable    int64  `json:"ledger_available"`
	StoredEarned       int64  `json:"stored_lifetime_earned"`
	LedgerEarned       int64  `json:"ledger_lifetime_earned"`
	StoredSpent        int64  `json:"stored_lifetime_spent"`
	LedgerSpent        int64  `json:"ledger_lifetime_spent"`
	StoredLastSequence int64  `json:"stored_last_sequence"`
	EntryCount         int    `json:"entry_count"`
	ChainBrokenAt      int64  `json:"chain_broken_at,omitempty"`
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidEntryType    = errors.New("invalid_entry_type")
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrAccountExists       = errors.New("account_exists")
)

// NormalizeUserID trims the id and rejects empty or oversized values.
func NormalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || len(userID) > 128 {
		return "", ErrInvalidUser
	}
	return userID, nil
}
