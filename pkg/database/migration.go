package database

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

var migrationFilePattern = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

// migrationLogger adapts ectologger to migrate.Logger.
type migrationLogger struct {
	ectologger.Logger
}

func (l migrationLogger) Verbose() bool {
	return true
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.Debugf(strings.TrimSpace(format), v...)
}

type MigrationConfig struct {
	MigrationFolderPath string
	Version             uint
	Force               int
	// AutoRollback forces a dirty database back to the version it had before the failed run.
	AutoRollback bool
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

func (ms *MigrationService) resolveMigrationFolder() string {
	folder := ms.config.MigrationFolderPath
	if _, err := os.Stat(folder); err == nil || filepath.IsAbs(folder) {
		return folder
	}
	workingDirectory, _ := os.Getwd()
	return filepath.Join(workingDirectory, folder)
}

func (ms *MigrationService) Migrate(databaseName string, driver database.Driver) error {
	folder := ms.resolveMigrationFolder()
	if _, err := os.Stat(folder); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", folder))
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return errors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = migrationLogger{Logger: ms.logger}

	return ms.run(m, folder)
}

func (ms *MigrationService) run(m *migrate.Migrate, folder string) error {
	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	previous, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Warn("Failed to read current migration version")
	}

	start := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	ms.logger.Infof("Database migrations finished in %v", time.Since(start))

	switch {
	case err == nil:
		ms.logger.Info("Successfully applied migrations")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		ms.logger.Info("No new migrations to apply")
		return nil
	case strings.Contains(err.Error(), "no migration found for version"):
		latest, latestErr := latestVersion(folder)
		if latestErr != nil {
			return errors.Wrap(latestErr, "failed to determine latest migration")
		}
		ms.logger.Warnf("No migration found for version %d, forcing latest version %d", previous, latest)
		return m.Force(latest)
	}

	ms.logger.WithError(err).Errorf("Migration failed: %v", err)

	version, dirty, versionErr := m.Version()
	if versionErr != nil || !dirty || !ms.config.AutoRollback {
		return err
	}

	target := int(previous)
	if target == 0 && version > 0 {
		target = int(version) - 1
	}
	ms.logger.Warnf("Database is dirty at version %d, forcing version %d", version, target)
	if forceErr := m.Force(target); forceErr != nil {
		ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", target)
		return forceErr
	}

	// still fail so the service does not start on a half-migrated schema
	return err
}

func latestVersion(folder string) (int, error) {
	files, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}

	var versions []int
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := migrationFilePattern.FindStringSubmatch(file.Name())
		if len(matches) < 2 {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return 0, err
		}
		versions = append(versions, version)
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found in %s", folder)
	}

	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
