package clientstatedb

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DB is the global SQLite database instance
var DB *gorm.DB

// InitSQLiteDB initializes the SQLite database
func InitSQLiteDB(dbPath string) error {
	var err error

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %v", err)
		}
	}

	// Configure GORM to be less verbose
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	DB, err = gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}

	// Auto-migrate schemas
	err = DB.AutoMigrate(
		&SQLiteSession{},
		&SQLiteReadNotification{},
		&SQLiteMetadata{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}

	log.Println("SQLite database initialized successfully")
	return nil
}

// SaveActiveAccountToSQLite replaces the persisted session account.
func SaveActiveAccountToSQLite(account string) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&SQLiteSession{}).Error; err != nil {
			return err
		}
		return tx.Create(&SQLiteSession{Account: account}).Error
	})
}

// GetActiveAccountFromSQLite returns the persisted session account, or an
// empty string when no session was saved.
func GetActiveAccountFromSQLite() (string, error) {
	var session SQLiteSession
	result := DB.First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return session.Account, nil
}

// ClearActiveAccountInSQLite removes any persisted session account. Idempotent.
func ClearActiveAccountInSQLite() error {
	return DB.Where("1 = 1").Delete(&SQLiteSession{}).Error
}

// GetReadNotificationIDsFromSQLite returns the set of acknowledged
// notification ids for an account.
func GetReadNotificationIDsFromSQLite(account string) (map[string]bool, error) {
	var rows []SQLiteReadNotification
	result := DB.Where("account = ?", account).Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	ids := make(map[string]bool, len(rows))
	for _, row := range rows {
		ids[row.NotificationID] = true
	}
	return ids, nil
}

// MarkNotificationsReadInSQLite adds ids to an account's read set. Already
// acknowledged ids are skipped, so the operation is idempotent and the set
// only ever grows.
func MarkNotificationsReadInSQLite(account string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	rows := make([]SQLiteReadNotification, len(ids))
	for i, id := range ids {
		rows[i] = SQLiteReadNotification{Account: account, NotificationID: id}
	}

	return DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// SetLastScannedBlockInSQLite stores the event-scan cursor.
func SetLastScannedBlockInSQLite(height uint64) error {
	meta := SQLiteMetadata{
		Key:   LastScannedBlockKey,
		Value: strconv.FormatUint(height, 10),
	}
	return DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
}

// GetLastScannedBlockFromSQLite returns the event-scan cursor, zero when none
// has been stored yet.
func GetLastScannedBlockFromSQLite() (uint64, error) {
	var meta SQLiteMetadata
	result := DB.Where("key = ?", LastScannedBlockKey).First(&meta)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}

	height, err := strconv.ParseUint(meta.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt last scanned block value %q: %v", meta.Value, err)
	}
	return height, nil
}
