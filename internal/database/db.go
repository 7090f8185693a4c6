package clientstatedb

const (
	LastScannedBlockKey = "last_scanned_block_height"
)

// Helper wrapper functions that redirect to SQLite implementations

func SaveActiveAccount(account string) error {
	return SaveActiveAccountToSQLite(account)
}

func GetActiveAccount() (string, error) {
	return GetActiveAccountFromSQLite()
}

func ClearActiveAccount() error {
	return ClearActiveAccountInSQLite()
}

func GetReadNotificationIDs(account string) (map[string]bool, error) {
	return GetReadNotificationIDsFromSQLite(account)
}

func MarkNotificationsRead(account string, ids []string) error {
	return MarkNotificationsReadInSQLite(account, ids)
}

func SetLastScannedBlock(height uint64) error {
	return SetLastScannedBlockInSQLite(height)
}

func GetLastScannedBlock() (uint64, error) {
	return GetLastScannedBlockFromSQLite()
}
