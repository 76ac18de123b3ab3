// Package reliability holds the operational safety net: local database
// backups and the cloud backup pipeline.
package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/rs/zerolog"
)

// dailyRetentionDays is how long local daily backups are kept.
const dailyRetentionDays = 30

// BackupService manages local database backups via SQLite's VACUUM INTO.
type BackupService struct {
	databases map[string]*database.DB
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a backup service over the named databases.
func NewBackupService(databases map[string]*database.DB, backupDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DatabaseNames returns the managed database names in stable order.
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for _, name := range []string{"history", "config", "planning"} {
		if _, ok := s.databases[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// DailyBackup snapshots every database into a dated directory and rotates
// snapshots past the retention window. A single failed database does not
// abort the others.
func (s *BackupService) DailyBackup() error {
	s.log.Info().Msg("Starting daily backup")
	startTime := time.Now()

	date := time.Now().Format(domain.DateKey)
	dailyDir := filepath.Join(s.backupDir, "daily", date)
	if err := os.MkdirAll(dailyDir, 0755); err != nil {
		return fmt.Errorf("failed to create daily backup directory: %w", err)
	}

	for _, name := range s.DatabaseNames() {
		backupPath := filepath.Join(dailyDir, name+".db")
		if err := s.BackupDatabase(name, backupPath); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("Failed to backup database")
			continue
		}
		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("Backup verification failed")
			_ = os.Remove(backupPath)
		}
	}

	if err := s.rotateDailyBackups(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate daily backups")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("backup_dir", dailyDir).
		Msg("Daily backup completed")
	return nil
}

// BackupDatabase snapshots one database. The WAL is checkpointed first so
// the snapshot contains every committed write.
func (s *BackupService) BackupDatabase(name, backupPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("database %s not found", name)
	}

	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}
	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed for %s: %w", name, err)
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}
	s.log.Debug().
		Str("database", name).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")
	return nil
}

// verifyBackup opens the snapshot and runs an integrity check.
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() { _ = backupDB.Close() }()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// rotateDailyBackups deletes dated snapshot directories past retention.
func (s *BackupService) rotateDailyBackups() error {
	dailyDir := filepath.Join(s.backupDir, "daily")
	cutoff := time.Now().AddDate(0, 0, -dailyRetentionDays)

	entries, err := os.ReadDir(dailyDir)
	if err != nil {
		return fmt.Errorf("failed to read daily backup directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirDate, err := time.Parse(domain.DateKey, entry.Name())
		if err != nil {
			continue
		}
		if dirDate.Before(cutoff) {
			path := filepath.Join(dailyDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("Failed to delete old daily backup")
			} else {
				s.log.Debug().Str("path", path).Msg("Deleted old daily backup")
			}
		}
	}
	return nil
}

// DailyBackupJob wraps BackupService.DailyBackup for the scheduler.
type DailyBackupJob struct {
	service *BackupService
}

// NewDailyBackupJob creates the daily local backup job.
func NewDailyBackupJob(service *BackupService) *DailyBackupJob {
	return &DailyBackupJob{service: service}
}

// Run executes the daily backup.
func (j *DailyBackupJob) Run() error {
	return j.service.DailyBackup()
}

// Name returns the job name for the scheduler.
func (j *DailyBackupJob) Name() string {
	return "daily_backup"
}
