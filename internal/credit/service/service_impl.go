package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalyser/internal/clock"
	"github.com/smallbiznis/catalyser/internal/config"
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	"github.com/smallbiznis/catalyser/internal/events"
	"github.com/smallbiznis/catalyser/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/catalyser/internal/observability/metrics"
	"github.com/smallbiznis/catalyser/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultSignupSource = "signup grant"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       creditdomain.Repository
	Clock      clock.Clock
	Pricing    *config.PricingConfigHolder `optional:"true"`
	Publisher  events.Publisher            `optional:"true"`
	ObsMetrics *obsmetrics.Metrics         `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       creditdomain.Repository
	clock      clock.Clock
	pricing    *config.PricingConfigHolder
	publisher  events.Publisher
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) creditdomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("credit.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      clk,
		pricing:    p.Pricing,
		publisher:  publisher,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) OpenAccount(ctx context.Context, req creditdomain.OpenAccountRequest) (*creditdomain.CreditBalance, error) {
	userID, err := creditdomain.NormalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}

	grant := s.signupGrant()
	if req.InitialGrant != nil {
		grant = *req.InitialGrant
	}
	if grant < 0 {
		return nil, creditdomain.ErrInvalidAmount
	}
	source := strings.TrimSpace(req.SourceDetail)
	if source == "" {
		source = defaultSignupSource
	}

	now := s.clock.Now()
	balance := &creditdomain.CreditBalance{
		UserID:         userID,
		Available:      grant,
		LifetimeEarned: grant,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	var entry *creditdomain.CreditLedgerEntry
	if grant > 0 {
		balance.LastSequence = 1
		entry = &creditdomain.CreditLedgerEntry{
			ID:           s.genID.Generate(),
			UserID:       userID,
			Sequence:     1,
			Amount:       grant,
			BalanceAfter: grant,
			EntryType:    creditdomain.EntryTypeGrant,
			SourceDetail: source,
			Metadata:     datatypes.JSONMap{},
			CreatedAt:    now,
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertBalance(ctx, tx, balance); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return creditdomain.ErrAccountExists
			}
			return err
		}
		if entry == nil {
			return nil
		}
		return s.repo.InsertEntry(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	if entry != nil {
		s.obsMetrics.RecordGrant(ctx, string(entry.EntryType), entry.Amount)
		s.publishEntry(ctx, entry)
	}
	logger.WithContext(ctx, s.log).Info("credit account opened",
		zap.String("user_id", userID),
		zap.Int64("initial_grant", grant),
	)
	return balance, nil
}

func (s *Service) Grant(ctx context.Context, req creditdomain.GrantRequest) (*creditdomain.CreditLedgerEntry, error) {
	userID, err := creditdomain.NormalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, creditdomain.ErrInvalidAmount
	}
	entryType := req.Type
	if entryType == "" {
		entryType = creditdomain.EntryTypeGrant
	}
	if !entryType.IsCredit() {
		return nil, creditdomain.ErrInvalidEntryType
	}

	var entry *creditdomain.CreditLedgerEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		affected, err := s.repo.CreditBalance(ctx, tx, userID, req.Amount, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return creditdomain.ErrAccountNotFound
		}

		entry, err = s.appendEntry(ctx, tx, userID, req.Amount, entryType, req.SourceDetail, req.Metadata, req.ExpiresAt, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordGrant(ctx, string(entryType), req.Amount)
	s.publishEntry(ctx, entry)
	return entry, nil
}

// TryDebit removes credits with a single conditional update. The balance is
// never read-then-written, so concurrent debits cannot overdraw it.
func (s *Service) TryDebit(ctx context.Context, req creditdomain.DebitRequest) (*creditdomain.CreditLedgerEntry, error) {
	userID, err := creditdomain.NormalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, creditdomain.ErrInvalidAmount
	}
	entryType := req.Type
	if entryType == "" {
		entryType = creditdomain.EntryTypeConsumption
	}
	if !entryType.IsDebit() {
		return nil, creditdomain.ErrInvalidEntryType
	}

	var entry *creditdomain.CreditLedgerEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		affected, err := s.repo.DebitBalance(ctx, tx, userID, req.Amount, now)
		if err != nil {
			if db.IsCheckViolation(err) {
				return creditdomain.ErrInsufficientCredits
			}
			return err
		}
		if affected == 0 {
			existing, err := s.repo.FindBalance(ctx, tx, userID)
			if err != nil {
				return err
			}
			if existing == nil {
				return creditdomain.ErrAccountNotFound
			}
			return creditdomain.ErrInsufficientCredits
		}

		entry, err = s.appendEntry(ctx, tx, userID, -req.Amount, entryType, req.SourceDetail, req.Metadata, nil, now)
		return err
	})
	if err != nil {
		if errors.Is(err, creditdomain.ErrInsufficientCredits) {
			s.obsMetrics.RecordDebitRejected(ctx, string(entryType), "insufficient_credits")
			logger.WithContext(ctx, s.log).Debug("debit refused",
				zap.String("user_id", userID),
				zap.Int64("amount", req.Amount),
			)
		}
		return nil, err
	}

	s.obsMetrics.RecordDebit(ctx, string(entryType), req.Amount)
	s.publishEntry(ctx, entry)
	return entry, nil
}

// appendEntry records the movement using the sequence and balance that the
// preceding update just wrote inside the same transaction.
func (s *Service) appendEntry(
	ctx context.Context,
	tx *gorm.DB,
	userID string,
	amount int64,
	entryType creditdomain.EntryType,
	sourceDetail string,
	metadata map[string]any,
	expiresAt *time.Time,
	now time.Time,
) (*creditdomain.CreditLedgerEntry, error) {
	balance, err := s.repo.FindBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, creditdomain.ErrAccountNotFound
	}

	var expires *time.Time
	if expiresAt != nil && !expiresAt.IsZero() {
		utc := expiresAt.UTC()
		expires = &utc
	}
	entry := &creditdomain.CreditLedgerEntry{
		ID:           s.genID.Generate(),
		UserID:       userID,
		Sequence:     balance.LastSequence,
		Amount:       amount,
		BalanceAfter: balance.Available,
		EntryType:    entryType,
		SourceDetail: strings.TrimSpace(sourceDetail),
		Metadata:     datatypes.JSONMap(metadata),
		ExpiresAt:    expires,
		CreatedAt:    now,
	}
	if entry.Metadata == nil {
		entry.Metadata = datatypes.JSONMap{}
	}
	if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("insert credit ledger entry: %w", err)
	}
	return entry, nil
}

func (s *Service) GetBalance(ctx context.Context, userID string) (*creditdomain.CreditBalance, error) {
	userID, err := creditdomain.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	balance, err := s.repo.FindBalance(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, creditdomain.ErrAccountNotFound
	}
	return balance, nil
}

func (s *Service) ListEntries(ctx context.Context, req creditdomain.ListEntriesRequest) (*creditdomain.ListEntriesResponse, error) {
	userID, err := creditdomain.NormalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = creditdomain.DefaultListLimit
	}
	if limit > creditdomain.MaxListLimit {
		limit = creditdomain.MaxListLimit
	}
	after := max(req.AfterSequence, 0)

	entries, err := s.repo.ListEntries(ctx, s.db, userID, after, 0, limit+1)
	if err != nil {
		return nil, err
	}

	resp := &creditdomain.ListEntriesResponse{Entries: entries}
	if len(entries) > limit {
		resp.Entries = entries[:limit]
		resp.HasMore = true
		resp.NextSequence = resp.Entries[limit-1].Sequence
	}
	if resp.Entries == nil {
		resp.Entries = []creditdomain.CreditLedgerEntry{}
	}
	return resp, nil
}

// Reconcile folds the ledger up to the stored last sequence. Entries are
// written in the same transaction that bumps the sequence, so this view is
// consistent without a repeatable-read transaction.
func (s *Service) Reconcile(ctx context.Context, userID string) (*creditdomain.ReconcileResult, error) {
	userID, err := creditdomain.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	balance, err := s.repo.FindBalance(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, creditdomain.ErrAccountNotFound
	}

	entries, err := s.repo.ListEntries(ctx, s.db, userID, 0, balance.LastSequence, 0)
	if err != nil {
		return nil, err
	}

	result := Fold(balance, entries)
	if !result.Consistent {
		logger.WithContext(ctx, s.log).Warn("credit ledger drift detected",
			zap.String("user_id", userID),
			zap.Int64("stored_available", result.StoredAvailable),
			zap.Int64("ledger_available", result.LedgerAvailable),
			zap.Int64("chain_broken_at", result.ChainBrokenAt),
		)
	}
	return result, nil
}

// Fold recomputes balance figures from entries ordered by sequence.
func Fold(balance *creditdomain.CreditBalance, entries []creditdomain.CreditLedgerEntry) *creditdomain.ReconcileResult {
	result := &creditdomain.ReconcileResult{
		UserID:             balance.UserID,
		StoredAvailable:    balance.Available,
		StoredEarned:       balance.LifetimeEarned,
		StoredSpent:        balance.LifetimeSpent,
		StoredLastSequence: balance.LastSequence,
		EntryCount:         len(entries),
	}

	var running int64
	for i, entry := range entries {
		running += entry.Amount
		if entry.Amount > 0 {
			result.LedgerEarned += entry.Amount
		} else {
			result.LedgerSpent -= entry.Amount
		}
		if result.ChainBrokenAt == 0 && (entry.Sequence != int64(i+1) || entry.BalanceAfter != running) {
			result.ChainBrokenAt = entry.Sequence
		}
	}
	result.LedgerAvailable = running

	result.Matched = result.StoredAvailable == result.LedgerAvailable &&
		result.StoredEarned == result.LedgerEarned &&
		result.StoredSpent == result.LedgerSpent
	result.Consistent = result.Matched &&
		result.ChainBrokenAt == 0 &&
		int64(len(entries)) == balance.LastSequence
	return result
}

func (s *Service) ListUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = creditdomain.DefaultListLimit
	}
	return s.repo.ListUserIDs(ctx, s.db, strings.TrimSpace(afterUserID), limit)
}

func (s *Service) signupGrant() int64 {
	if s.pricing == nil {
		return config.DefaultPricingConfig().SignupGrant
	}
	return s.pricing.Get().SignupGrant
}

func (s *Service) publishEntry(ctx context.Context, entry *creditdomain.CreditLedgerEntry) {
	if entry == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.SubjectCreditEntryCreated, events.Event{
		ID:         entry.ID.String(),
		Type:       "credit.entry_created",
		OccurredAt: entry.CreatedAt,
		Data:       entry,
	})
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("publish credit entry failed",
			zap.String("entry_id", entry.ID.String()),
			zap.Error(err),
		)
	}
}
