package model

import (
	"errors"
	"strings"
)

// MaxStationPatternLen caps regex search patterns.
const MaxStationPatternLen = 100

// StationStatus is the charging state of a station.
type StationStatus string

const (
	StationAvailable StationStatus = "available"
	StationCharging  StationStatus = "charging"
	StationOffline   StationStatus = "offline"
)

// Station is a scooter charging station. Stations are public.
type Station struct {
	ID       int64         `json:"id"       db:"id"`
	Name     string        `json:"name"     db:"name"`
	Location string        `json:"location" db:"location"`
	Status   StationStatus `json:"status"   db:"status"`
}

// ValidateStationPattern checks a regex search pattern before compilation.
func ValidateStationPattern(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New("pattern is required")
	}
	if len(p) > MaxStationPatternLen {
		return errors.New("pattern is too long")
	}
	return nil
}
