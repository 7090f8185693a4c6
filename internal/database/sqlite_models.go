package clientstatedb

import (
	"gorm.io/gorm"
)

// SQLiteSession stores the last connected wallet account so the session can be
// restored silently on startup. At most one row is kept.
type SQLiteSession struct {
	gorm.Model
	Account string `gorm:"uniqueIndex"`
}

// SQLiteReadNotification records a notification id acknowledged by an account.
// Rows are only ever added; marking read is a union, never a replacement.
type SQLiteReadNotification struct {
	gorm.Model
	Account        string `gorm:"uniqueIndex:idx_account_notification"`
	NotificationID string `gorm:"uniqueIndex:idx_account_notification"`
}

// SQLiteMetadata stores miscellaneous key/value state, such as the last
// scanned block cursor for event derivation.
type SQLiteMetadata struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex"`
	Value string
}
