package postgres

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/kailas-cloud/routedex/internal/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending up migrations. A database already at the latest
// version is not an error.
func Migrate(dsn string, logger *zap.Logger) error {
	url, err := migrateURL(dsn)
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("open migrations: %w", err)}
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("database schema up to date")
			return nil
		}
		return &db.Error{Op: db.OpMigrate, Err: err}
	}

	version, dirty, err := m.Version()
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	logger.Info("database migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// migrateURL rewrites a postgres URL to the pgx5 scheme golang-migrate expects.
func migrateURL(dsn string) (string, error) {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest, nil
		}
	}
	if strings.HasPrefix(dsn, "pgx5://") {
		return dsn, nil
	}
	return "", fmt.Errorf("migrations need a URL-style dsn, got %q", redact(dsn))
}

func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}
