package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/target/seclab-api/internal/core"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
)

const defaultStationPattern = ".*"

// StationService searches the public station catalogue.
type StationService struct {
	repo core.StationRepository
}

// NewStationService constructs a new StationService.
func NewStationService(repo core.StationRepository) *StationService {
	if repo == nil {
		panic("StationRepository is required")
	}
	return &StationService{repo: repo}
}

// Search matches q as a literal substring of name or location.
func (s *StationService) Search(ctx context.Context, q string) ([]*model.Station, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) > maxSearchLen {
		return nil, apperrors.ValidationField("q", "search term is too long")
	}
	stations, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search stations: %w", err)
	}
	return stations, nil
}

// RegexSearch matches pattern against station names. Patterns are RE2, so
// matching runs in linear time; length is capped and compile errors are reported generically.
func (s *StationService) RegexSearch(ctx context.Context, pattern string) ([]*model.Station, error) {
	if pattern == "" {
		pattern = defaultStationPattern
	}
	if err := model.ValidateStationPattern(pattern); err != nil {
		return nil, apperrors.ValidationField("pattern", err.Error())
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, apperrors.ValidationField("pattern", "invalid pattern")
	}

	all, err := s.repo.Search(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	out := make([]*model.Station, 0, len(all))
	for _, st := range all {
		if re.MatchString(st.Name) {
			out = append(out, st)
		}
	}
	return out, nil
}
