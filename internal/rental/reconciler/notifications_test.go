package reconciler

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientstatedb "github.com/securerent/securerent-client/internal/database"
	"github.com/securerent/securerent-client/internal/rental"
)

func initTestDB(t *testing.T) {
	t.Helper()
	err := clientstatedb.InitSQLiteDB(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
}

func txHash(b byte) common.Hash {
	return common.Hash{b}
}

func seededLedger() *fakeLedger {
	ledger := newFakeLedger()
	ledger.head = 120

	ledger.properties[1] = rental.Property{ID: 1, Owner: landlord, RawDescription: "Flat", Available: true}
	ledger.contracts[1] = rental.RentContract{
		ID: 1, PropertyID: 1, Landlord: landlord, Tenant: tenant,
		MonthlyRent: big.NewInt(1000), MonthsPaid: 1, TotalMonths: 12,
		Status: rental.StatusActive,
	}

	ledger.created = []rental.ContractCreatedEvent{
		{ContractID: 1, PropertyID: 1, Landlord: landlord, Tenant: tenant, TxHash: txHash(1), BlockNumber: 100},
	}
	ledger.signed = []rental.ContractSignedEvent{
		{ContractID: 1, Tenant: tenant, TxHash: txHash(2), BlockNumber: 101},
	}
	ledger.paid = []rental.RentPaidEvent{
		{ContractID: 1, Tenant: tenant, Amount: big.NewInt(1000), MonthsPaid: 1, TxHash: txHash(3), BlockNumber: 102},
	}
	ledger.requested = []rental.RentRequestedEvent{
		{PropertyID: 1, Tenant: stranger, TxHash: txHash(4), BlockNumber: 103},
	}
	return ledger
}

func kinds(feed Feed) []Kind {
	out := make([]Kind, len(feed.Notifications))
	for i, n := range feed.Notifications {
		out[i] = n.Kind
	}
	return out
}

func TestDeriveNotificationsLandlordFeed(t *testing.T) {
	initTestDB(t)
	rec := New(seededLedger(), 0)

	feed, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)

	// Newest block first: request (103), payment received (102), signed (101).
	assert.Equal(t, []Kind{KindRequested, KindPaymentReceived, KindSigned}, kinds(feed))
	assert.Equal(t, 3, feed.Unread)

	for _, n := range feed.Notifications {
		assert.False(t, n.Read)
		assert.NotEmpty(t, n.Message)
	}
}

func TestDeriveNotificationsTenantFeed(t *testing.T) {
	initTestDB(t)
	rec := New(seededLedger(), 0)

	feed, err := rec.DeriveNotifications(context.Background(), tenant)
	require.NoError(t, err)

	// Payment sent (102), then the contract awaiting signature (100).
	assert.Equal(t, []Kind{KindPaymentSent, KindCreated}, kinds(feed))
	assert.Equal(t, landlord, feed.Notifications[0].RelatedAccount)
}

func TestDeriveNotificationsStrangerSeesNothing(t *testing.T) {
	initTestDB(t)
	rec := New(seededLedger(), 0)

	other := common.HexToAddress("0x4444444444444444444444444444444444444444")
	feed, err := rec.DeriveNotifications(context.Background(), other)
	require.NoError(t, err)
	assert.Empty(t, feed.Notifications)
	assert.Zero(t, feed.Unread)
}

func TestDeriveNotificationsIdempotent(t *testing.T) {
	initTestDB(t)
	rec := New(seededLedger(), 0)

	first, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)
	second, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)

	assert.Equal(t, first.Notifications, second.Notifications)
	assert.Equal(t, first.Unread, second.Unread)
}

func TestDeriveNotificationsMarkReadSurvivesRederivation(t *testing.T) {
	initTestDB(t)
	rec := New(seededLedger(), 0)

	feed, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)
	require.Equal(t, 3, feed.Unread)

	err = rec.MarkRead(landlord, []string{feed.Notifications[0].ID})
	require.NoError(t, err)

	feed, err = rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)
	assert.Equal(t, 2, feed.Unread)
	assert.True(t, feed.Notifications[0].Read)

	// Marking the same id again is a no-op.
	err = rec.MarkRead(landlord, []string{feed.Notifications[0].ID})
	require.NoError(t, err)

	feed, err = rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)
	assert.Equal(t, 2, feed.Unread)
}

func TestDeriveNotificationsReadSetIsPerAccount(t *testing.T) {
	initTestDB(t)
	rec := New(seededLedger(), 0)

	feed, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)
	err = rec.MarkRead(landlord, []string{feed.Notifications[0].ID})
	require.NoError(t, err)

	tenantFeed, err := rec.DeriveNotifications(context.Background(), tenant)
	require.NoError(t, err)
	for _, n := range tenantFeed.Notifications {
		assert.False(t, n.Read)
	}
}

func TestDeriveNotificationsPaymentFansOutBothRoles(t *testing.T) {
	initTestDB(t)
	ledger := seededLedger()
	rec := New(ledger, 0)

	landlordFeed, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)
	tenantFeed, err := rec.DeriveNotifications(context.Background(), tenant)
	require.NoError(t, err)

	var received, sent string
	for _, n := range landlordFeed.Notifications {
		if n.Kind == KindPaymentReceived {
			received = n.ID
		}
	}
	for _, n := range tenantFeed.Notifications {
		if n.Kind == KindPaymentSent {
			sent = n.ID
		}
	}

	require.NotEmpty(t, received)
	require.NotEmpty(t, sent)
	assert.NotEqual(t, received, sent, "same event, distinct ids per role")
}

func TestDeriveNotificationsDegradesOnFilterFailure(t *testing.T) {
	initTestDB(t)
	ledger := seededLedger()
	ledger.failures["FilterRentPaid"] = errors.New("rpc timeout")
	rec := New(ledger, 0)

	feed, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)

	// Payment class is dropped, the other classes still surface.
	assert.Equal(t, []Kind{KindRequested, KindSigned}, kinds(feed))
}

func TestDeriveNotificationsPersistsScanCursor(t *testing.T) {
	initTestDB(t)
	ledger := seededLedger()
	rec := New(ledger, 0)

	_, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)

	head, err := clientstatedb.GetLastScannedBlock()
	require.NoError(t, err)
	assert.Equal(t, ledger.head, head)
}

func TestDeriveNotificationsKeepsCursorWhenAllFiltersFail(t *testing.T) {
	initTestDB(t)
	ledger := seededLedger()
	rec := New(ledger, 0)

	_, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)
	require.NoError(t, clientstatedb.SetLastScannedBlock(110))

	outage := errors.New("rpc down")
	ledger.failures["FilterContractSigned"] = outage
	ledger.failures["FilterRentPaid"] = outage
	ledger.failures["FilterRentRequested"] = outage
	ledger.failures["FilterContractCreated"] = outage

	feed, err := rec.DeriveNotifications(context.Background(), landlord)
	require.NoError(t, err)
	assert.Empty(t, feed.Notifications)

	head, err := clientstatedb.GetLastScannedBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(110), head, "fully degraded pass must not advance the cursor")
}
