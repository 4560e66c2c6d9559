package feed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	pgrepo "github.com/schamil355/nokhchi-znakomstva-sub002/internal/repo/postgres"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
)

const (
	defaultPageSize       = 50
	maxPageSize           = 100
	defaultRequestTimeout = 15 * time.Second
)

var (
	ErrValidation    = errors.New("validation error")
	ErrInvalidCursor = errors.New("invalid cursor")
)

type CandidateSource interface {
	ListCandidates(ctx context.Context, q pgrepo.CandidateQuery) ([]model.CandidateRow, error)
}

type FiltersProvider interface {
	Get(ctx context.Context, userID uuid.UUID) (model.DiscoveryFilters, error)
}

type Config struct {
	PageSize       int
	RequestTimeout time.Duration
}

type Dependencies struct {
	Assembler *Assembler
	Source    CandidateSource
	Filters   FiltersProvider
	Limits    *ratesvc.Registry
}

type Service struct {
	assembler *Assembler
	source    CandidateSource
	filters   FiltersProvider
	limits    *ratesvc.Registry
	cfg       Config
	now       func() time.Time
}

// Page is one slice of the feed. NextCursor is empty on the last page.
type Page struct {
	Profiles   []model.Profile
	Filters    model.DiscoveryFilters
	NextCursor string
}

type pageCursor struct {
	CreatedAt int64     `json:"t"`
	UserID    uuid.UUID `json:"i"`
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	assembler := deps.Assembler
	if assembler == nil {
		assembler = NewAssembler(nil, nil)
	}

	return &Service{
		assembler: assembler,
		source:    deps.Source,
		filters:   deps.Filters,
		limits:    deps.Limits,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Fetch loads the next feed page for viewerID under the feed limiter.
func (s *Service) Fetch(ctx context.Context, viewerID uuid.UUID, origin *model.Origin, cursor string) (Page, error) {
	if viewerID == uuid.Nil {
		return Page{}, ErrValidation
	}
	if s.source == nil || s.filters == nil {
		return Page{}, fmt.Errorf("feed dependencies are not configured")
	}
	after, hasCursor, err := decodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}

	if s.limits == nil {
		return s.fetch(ctx, viewerID, origin, after, hasCursor)
	}
	return ratesvc.Throttle(ctx, s.limits, ratesvc.ActionFeed, viewerID, func(ctx context.Context) (Page, error) {
		return s.fetch(ctx, viewerID, origin, after, hasCursor)
	})
}

func (s *Service) fetch(ctx context.Context, viewerID uuid.UUID, origin *model.Origin, after pageCursor, hasCursor bool) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	filters, err := s.filters.Get(ctx, viewerID)
	if err != nil {
		return Page{}, fmt.Errorf("load discovery filters: %w", err)
	}

	now := s.now().UTC()
	query := pgrepo.CandidateQuery{
		ViewerID:   viewerID,
		Genders:    genderStrings(filters.Genders),
		Intentions: intentionStrings(filters.Intentions),
		BornAfter:  now.AddDate(-(filters.AgeRange.Max + 1), 0, 1),
		BornBefore: now.AddDate(-filters.AgeRange.Min, 0, 0),
		Limit:      s.cfg.PageSize,
	}
	if hasCursor {
		createdAt := time.UnixMicro(after.CreatedAt).UTC()
		query.AfterCreatedAt = &createdAt
		query.AfterUserID = after.UserID
	}

	rows, err := s.source.ListCandidates(ctx, query)
	if err != nil {
		return Page{}, fmt.Errorf("list candidates: %w", err)
	}

	page := Page{
		Profiles: s.assembler.Assemble(viewerID, filters, rows, origin),
		Filters:  filters,
	}
	if len(rows) == s.cfg.PageSize {
		last := rows[len(rows)-1]
		page.NextCursor, err = encodeCursor(pageCursor{CreatedAt: last.CreatedAt.UnixMicro(), UserID: last.UserID})
		if err != nil {
			return Page{}, err
		}
	}
	return page, nil
}

func encodeCursor(c pageCursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeCursor(value string) (pageCursor, bool, error) {
	if value == "" {
		return pageCursor{}, false, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return pageCursor{}, false, ErrInvalidCursor
	}
	var c pageCursor
	if err := json.Unmarshal(raw, &c); err != nil || c.UserID == uuid.Nil || c.CreatedAt <= 0 {
		return pageCursor{}, false, ErrInvalidCursor
	}
	return c, true, nil
}

func genderStrings(values []enums.Gender) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

func intentionStrings(values []enums.Intention) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}
