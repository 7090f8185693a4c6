package clientstatedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestDB(t *testing.T) {
	t.Helper()
	err := InitSQLiteDB(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
}

func TestActiveAccountLifecycle(t *testing.T) {
	initTestDB(t)

	account, err := GetActiveAccount()
	require.NoError(t, err)
	assert.Empty(t, account, "fresh database has no session")

	require.NoError(t, SaveActiveAccount("0xAAAA"))
	account, err = GetActiveAccount()
	require.NoError(t, err)
	assert.Equal(t, "0xAAAA", account)

	// A second save replaces, never accumulates.
	require.NoError(t, SaveActiveAccount("0xBBBB"))
	account, err = GetActiveAccount()
	require.NoError(t, err)
	assert.Equal(t, "0xBBBB", account)

	require.NoError(t, ClearActiveAccount())
	account, err = GetActiveAccount()
	require.NoError(t, err)
	assert.Empty(t, account)

	// Clearing an already empty session is fine.
	require.NoError(t, ClearActiveAccount())
}

func TestReadNotificationSetGrowsMonotonically(t *testing.T) {
	initTestDB(t)

	ids, err := GetReadNotificationIDs("0xAAAA")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, MarkNotificationsRead("0xAAAA", []string{"tx1-signed", "tx2-created"}))

	ids, err = GetReadNotificationIDs("0xAAAA")
	require.NoError(t, err)
	assert.True(t, ids["tx1-signed"])
	assert.True(t, ids["tx2-created"])
	assert.Len(t, ids, 2)

	// Overlapping marks only add the new id.
	require.NoError(t, MarkNotificationsRead("0xAAAA", []string{"tx2-created", "tx3-requested"}))

	ids, err = GetReadNotificationIDs("0xAAAA")
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.True(t, ids["tx3-requested"])
}

func TestReadNotificationsScopedPerAccount(t *testing.T) {
	initTestDB(t)

	require.NoError(t, MarkNotificationsRead("0xAAAA", []string{"tx1-signed"}))

	ids, err := GetReadNotificationIDs("0xBBBB")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMarkNotificationsReadEmptyList(t *testing.T) {
	initTestDB(t)
	require.NoError(t, MarkNotificationsRead("0xAAAA", nil))
}

func TestLastScannedBlockLifecycle(t *testing.T) {
	initTestDB(t)

	height, err := GetLastScannedBlock()
	require.NoError(t, err)
	assert.Zero(t, height, "no cursor stored yet")

	require.NoError(t, SetLastScannedBlock(1234))
	height, err = GetLastScannedBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), height)

	require.NoError(t, SetLastScannedBlock(5678))
	height, err = GetLastScannedBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(5678), height)
}
