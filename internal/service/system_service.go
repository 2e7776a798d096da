package service

import (
	"context"
	"database/sql"

	"github.com/ndewijer/portfolio-dashboard/internal/database"
)

// VersionInfo describes the running build and its schema.
type VersionInfo struct {
	AppVersion string
	DbVersion  int64
}

// SystemService handles system-related operations
type SystemService struct {
	db         *sql.DB
	appVersion string
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB, appVersion string) *SystemService {
	return &SystemService{
		db:         db,
		appVersion: appVersion,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion returns the application version and the applied migration version.
func (s *SystemService) CheckVersion(ctx context.Context) (VersionInfo, error) {
	v, err := database.Version(ctx, s.db)
	if err != nil {
		return VersionInfo{}, err
	}
	return VersionInfo{AppVersion: s.appVersion, DbVersion: v}, nil
}
