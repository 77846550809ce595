package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/pageza/mealplanner/backend/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the embedded SQL migrations, for cmd/migrate.
func Migrations() fs.FS {
	sub, _ := fs.Sub(migrationFS, "migrations")
	return sub
}

// Models lists every table the application owns.
func Models() []any {
	return append([]any{
		&models.Profile{},
		&models.Guest{},
		&models.GuestConversionAudit{},
		&models.Message{},
		&models.MealPlanEntry{},
	}, models.OwnedTables()...)
}

// RunMigrations brings the schema up to date. SQLite uses GORM
// auto-migration; Postgres applies the embedded SQL files in lexical order
// and records each one in the migrations table.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		slog.Default().InfoContext(ctx, "using GORM auto-migration for SQLite", "module", "database")
		return db.WithContext(ctx).AutoMigrate(Models()...)
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	db = db.WithContext(ctx)
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, name := range names {
		var count int64
		if err := db.Table("migrations").Where("name = ?", name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(content)).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", name, err)
			}
			if err := tx.Exec("INSERT INTO migrations (name) VALUES (?)", name).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Default().InfoContext(ctx, "applied migration", "module", "database", "migration", name)
	}

	return nil
}

func migrationNames() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
