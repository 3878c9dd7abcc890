// Package history stores executed command lines in a SQLite database so they
// can be offered back as completions.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type HistoryManager struct {
	db     *gorm.DB
	dbPath string
}

type HistoryEntry struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time `gorm:"index"`

	Command   string `gorm:"index"`
	Directory string
	ExitCode  sql.NullInt32
}

// CommandUsage summarizes all runs of one distinct command line.
type CommandUsage struct {
	Command  string
	LastUsed time.Time
	Uses     int
	ExitCode sql.NullInt32 // exit code of the most recent run
}

const (
	historySchemaVersion = 2
)

func NewHistoryManager(dbFilePath string) (*HistoryManager, error) {
	dbFileExists := true
	if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		dbFileExists = false
	} else if err != nil {
		return nil, fmt.Errorf("error checking history db: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening history db: %w", err)
	}

	historyManager := &HistoryManager{
		db:     db,
		dbPath: dbFilePath,
	}

	if historyManager.needsMigration(dbFileExists) {
		if err := historyManager.migrate(); err != nil {
			historyManager.Close()
			return nil, err
		}
	}

	return historyManager, nil
}

// migrate drops a table left by another schema version and recreates it.
func (historyManager *HistoryManager) migrate() error {
	migrator := historyManager.db.Migrator()
	if migrator.HasTable(&HistoryEntry{}) {
		if err := migrator.DropTable(&HistoryEntry{}); err != nil {
			return fmt.Errorf("error dropping outdated history table: %w", err)
		}
	}
	if err := historyManager.db.AutoMigrate(&HistoryEntry{}); err != nil {
		return fmt.Errorf("error auto-migrating history schema: %w", err)
	}
	if err := historyManager.writeSchemaVersion(historySchemaVersion); err != nil {
		return fmt.Errorf("error writing history schema version: %w", err)
	}
	return nil
}

func (historyManager *HistoryManager) needsMigration(dbFileExists bool) bool {
	if !dbFileExists {
		return true
	}

	versionMatches, err := historyManager.schemaVersionMatches()
	if err != nil || !versionMatches {
		return true
	}

	// A version marker without the table means the db was tampered with.
	return !historyManager.db.Migrator().HasTable(&HistoryEntry{})
}

func (historyManager *HistoryManager) writeSchemaVersion(version int) error {
	return os.WriteFile(historyManager.schemaVersionPath(), []byte(strconv.Itoa(version)), 0644)
}

func (historyManager *HistoryManager) schemaVersionMatches() (bool, error) {
	data, err := os.ReadFile(historyManager.schemaVersionPath())
	if err != nil {
		return false, err
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, err
	}
	if version != historySchemaVersion {
		return false, fmt.Errorf("history schema version mismatch: got %d, want %d", version, historySchemaVersion)
	}
	return true, nil
}

// schemaVersionPath keeps the version marker next to the database file.
func (historyManager *HistoryManager) schemaVersionPath() string {
	return historyManager.dbPath + ".schema_version"
}

// RecordCommand stores a finished command line.
func (historyManager *HistoryManager) RecordCommand(command string, directory string, exitCode int) (*HistoryEntry, error) {
	entry := HistoryEntry{
		Command:   command,
		Directory: directory,
		ExitCode:  sql.NullInt32{Int32: int32(exitCode), Valid: true},
	}

	result := historyManager.db.Create(&entry)
	if result.Error != nil {
		return nil, result.Error
	}

	return &entry, nil
}

func (historyManager *HistoryManager) GetRecentEntries(directory string, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	var db = historyManager.db
	if directory != "" {
		db = db.Where("directory = ?", directory)
	}
	result := db.Order("id desc").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	slices.Reverse(entries)
	return entries, nil
}

// GetDistinctCommandsByPrefix returns the distinct command lines starting
// with prefix, most recently used first. Matching is case sensitive.
func (historyManager *HistoryManager) GetDistinctCommandsByPrefix(prefix string, limit int) ([]CommandUsage, error) {
	var groups []struct {
		LastID uint
		Uses   int
	}
	result := historyManager.db.Model(&HistoryEntry{}).
		Select("MAX(id) AS last_id, COUNT(*) AS uses").
		Where("instr(command, ?) = 1", prefix).
		Group("command").
		Order("last_id desc").
		Limit(limit).
		Scan(&groups)
	if result.Error != nil {
		return nil, result.Error
	}
	if len(groups) == 0 {
		return []CommandUsage{}, nil
	}

	ids := make([]uint, len(groups))
	for i, g := range groups {
		ids[i] = g.LastID
	}

	var entries []HistoryEntry
	if err := historyManager.db.Find(&entries, ids).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]HistoryEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	usages := make([]CommandUsage, 0, len(groups))
	for _, g := range groups {
		entry, ok := byID[g.LastID]
		if !ok {
			continue
		}
		usages = append(usages, CommandUsage{
			Command:  entry.Command,
			LastUsed: entry.CreatedAt,
			Uses:     g.Uses,
			ExitCode: entry.ExitCode,
		})
	}
	return usages, nil
}

// SearchHistory searches for history entries containing the given substring.
// Returns entries in reverse chronological order (most recent first).
func (historyManager *HistoryManager) SearchHistory(query string, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	result := historyManager.db.Where("instr(command, ?) > 0", query).
		Order("id desc").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}

func (historyManager *HistoryManager) DeleteEntry(id uint) error {
	result := historyManager.db.Delete(&HistoryEntry{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no history entry found with id %d", id)
	}

	return nil
}

func (historyManager *HistoryManager) ResetHistory() error {
	result := historyManager.db.Exec("DELETE FROM history_entries")
	if result.Error != nil {
		return result.Error
	}

	return nil
}

// Close closes the underlying database.
func (historyManager *HistoryManager) Close() error {
	sqlDB, err := historyManager.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
