package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"snapgram/internal/middleware"

	"gorm.io/gorm"
)

// migrationLog is one row of migration_logs, written in the same transaction
// as the migration it records.
type migrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

func (migrationLog) TableName() string {
	return "migration_logs"
}

// Migrator applies a version-ordered set of SQL migrations and tracks them in
// migration_logs.
type Migrator struct {
	db  *gorm.DB
	set []Migration
}

// NewMigrator returns a Migrator over set. Callers outside tests use the
// embedded migrations through RunMigrations and RollbackMigration.
func NewMigrator(db *gorm.DB, set []Migration) *Migrator {
	return &Migrator{db: db, set: set}
}

// Applied returns the recorded versions in ascending order. A database that
// has never been migrated has no log table and reports nothing applied.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(&migrationLog{}) {
		return nil, nil
	}
	var versions []int
	if err := db.Model(&migrationLog{}).Order("version").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return versions, nil
}

// Pending returns the migrations in the set that have not been recorded.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.checkKnown(applied); err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range m.set {
		if !slices.Contains(applied, mig.Version) {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns the ones it applied.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	if err := m.db.WithContext(ctx).Migrator().AutoMigrate(&migrationLog{}); err != nil {
		return nil, fmt.Errorf("create migration_logs: %w", err)
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	for i, mig := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&migrationLog{Version: mig.Version, Name: mig.Name}).Error
		})
		if err != nil {
			return pending[:i], fmt.Errorf("apply %s: %w", mig.String(), err)
		}
		middleware.Logger.InfoContext(ctx, "Migration applied",
			slog.Int("version", mig.Version), slog.String("name", mig.Name))
	}
	return pending, nil
}

// Down reverts one applied migration and removes its log row atomically.
func (m *Migrator) Down(ctx context.Context, version int) error {
	idx := slices.IndexFunc(m.set, func(mig Migration) bool { return mig.Version == version })
	if idx < 0 {
		return fmt.Errorf("migration version %d not found", version)
	}
	mig := m.set[idx]

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s has not been applied", mig.String())
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.DownScript).Error; err != nil {
			return err
		}
		return tx.Where("version = ?", version).Delete(&migrationLog{}).Error
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", mig.String(), err)
	}
	middleware.Logger.InfoContext(ctx, "Migration rolled back",
		slog.Int("version", version), slog.String("name", mig.Name))
	return nil
}

// checkKnown refuses to run against a log that records versions this build
// does not ship, which means the database was migrated by a newer binary.
func (m *Migrator) checkKnown(applied []int) error {
	var unknown []string
	for _, v := range applied {
		if !slices.ContainsFunc(m.set, func(mig Migration) bool { return mig.Version == v }) {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("migration_logs records versions unknown to this build: %s",
		strings.Join(unknown, ", "))
}

// RunMigrations applies the embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) ([]Migration, error) {
	return NewMigrator(db, migrations).Up(ctx)
}

// RollbackMigration reverts one embedded migration by version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewMigrator(db, migrations).Down(ctx, version)
}
