package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/target/seclab-api/internal/data/pgxutil"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
)

// StationRepo provides database operations for charging stations.
type StationRepo struct {
	DB *sql.DB
}

// NewStationRepo creates a new StationRepo.
func NewStationRepo(db *sql.DB) *StationRepo {
	return &StationRepo{DB: db}
}

// Search matches q against name or location with a bound ILIKE parameter.
func (r *StationRepo) Search(ctx context.Context, q string) ([]*model.Station, error) {
	stations, err := pgxutil.QueryAll[model.Station](ctx, r.DB, `
		SELECT id, name, location, status
		FROM stations
		WHERE name ILIKE $1 ESCAPE '\' OR location ILIKE $1 ESCAPE '\'
		ORDER BY id`, containsPattern(q))
	if err != nil {
		return nil, fmt.Errorf("search stations: %w", apperrors.MapDBError(err))
	}
	return stations, nil
}

// Create inserts a station; used by seeding.
func (r *StationRepo) Create(ctx context.Context, s model.Station) error {
	status := s.Status
	if status == "" {
		status = model.StationAvailable
	}
	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO stations (name, location, status) VALUES ($1, $2, $3)`,
		s.Name, s.Location, string(status),
	); err != nil {
		return fmt.Errorf("create station: %w", apperrors.MapDBError(err))
	}
	return nil
}
