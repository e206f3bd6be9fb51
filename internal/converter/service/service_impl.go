package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	sharedcache "github.com/smallbiznis/catalyser/internal/cache"
	"github.com/smallbiznis/catalyser/internal/clock"
	converterdomain "github.com/smallbiznis/catalyser/internal/converter/domain"
	"github.com/smallbiznis/catalyser/internal/observability/logger"
	"github.com/smallbiznis/catalyser/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lookupTTL = 10 * time.Minute

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  converterdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    converterdomain.Repository
	clock   clock.Clock
	lookups sharedcache.Cache[snowflake.ID, converterdomain.Converter]
}

func New(p Params) converterdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("converter.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		lookups: sharedcache.NewTTLCache[snowflake.ID, converterdomain.Converter](),
	}
}

func normalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (s *Service) Create(ctx context.Context, req converterdomain.CreateRequest) (*converterdomain.Converter, error) {
	code := normalizeCode(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return nil, converterdomain.ErrInvalidConverter
	}

	now := s.clock.Now().UTC()
	converter := &converterdomain.Converter{
		ID:        s.genID.Generate(),
		Code:      code,
		Name:      name,
		Make:      strings.TrimSpace(req.Make),
		PtContent: strings.TrimSpace(req.PtContent),
		PdContent: strings.TrimSpace(req.PdContent),
		RhContent: strings.TrimSpace(req.RhContent),
		Weight:    strings.TrimSpace(req.Weight),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, converter); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, converterdomain.ErrConverterExists
		}
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("converter created",
		zap.String("converter_id", converter.ID.String()),
		zap.String("code", code),
	)
	return converter, nil
}

// Get serves repeated lookups from memory. Catalogue rows are never updated
// in place so a cached entry cannot go stale.
func (s *Service) Get(ctx context.Context, id snowflake.ID) (*converterdomain.Converter, error) {
	if id <= 0 {
		return nil, converterdomain.ErrConverterNotFound
	}
	if cached, ok := s.lookups.Get(id); ok {
		return &cached, nil
	}

	converter, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if converter == nil {
		return nil, converterdomain.ErrConverterNotFound
	}
	s.lookups.Set(id, *converter, lookupTTL)
	return converter, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*converterdomain.Converter, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, converterdomain.ErrConverterNotFound
	}
	converter, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if converter == nil {
		return nil, converterdomain.ErrConverterNotFound
	}
	return converter, nil
}

func (s *Service) List(ctx context.Context, req converterdomain.ListRequest) (*converterdomain.ListResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = converterdomain.DefaultListLimit
	}
	if limit > converterdomain.MaxListLimit {
		limit = converterdomain.MaxListLimit
	}

	rows, err := s.repo.List(ctx, s.db, max(req.AfterID, 0), limit+1)
	if err != nil {
		return nil, err
	}

	resp := &converterdomain.ListResponse{Converters: rows}
	if len(rows) > limit {
		resp.Converters = rows[:limit]
		resp.HasMore = true
		next := resp.Converters[limit-1].ID
		resp.NextID = &next
	}
	if resp.Converters == nil {
		resp.Converters = []converterdomain.Converter{}
	}
	return resp, nil
}
