package reconciler

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securerent/securerent-client/internal/rental"
)

// fakeLedger is an in-memory rental.Reader for view-model tests.
type fakeLedger struct {
	properties map[uint64]rental.Property
	contracts  map[uint64]rental.RentContract
	requests   map[uint64][]rental.RentRequest

	byLandlord map[common.Address][]uint64
	byTenant   map[common.Address][]uint64

	created   []rental.ContractCreatedEvent
	signed    []rental.ContractSignedEvent
	paid      []rental.RentPaidEvent
	requested []rental.RentRequestedEvent

	head uint64

	// failures injects an error for named calls.
	failures map[string]error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		properties: map[uint64]rental.Property{},
		contracts:  map[uint64]rental.RentContract{},
		requests:   map[uint64][]rental.RentRequest{},
		byLandlord: map[common.Address][]uint64{},
		byTenant:   map[common.Address][]uint64{},
		failures:   map[string]error{},
	}
}

func (f *fakeLedger) fail(call string) error { return f.failures[call] }

func (f *fakeLedger) PropertyCounter(context.Context) (uint64, error) {
	if err := f.fail("PropertyCounter"); err != nil {
		return 0, err
	}
	var max uint64
	for id := range f.properties {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (f *fakeLedger) GetProperty(_ context.Context, id uint64) (rental.Property, error) {
	if err := f.fail("GetProperty"); err != nil {
		return rental.Property{}, err
	}
	p, ok := f.properties[id]
	if !ok {
		return rental.Property{}, errors.New("no such property")
	}
	return p, nil
}

func (f *fakeLedger) ContractCounter(context.Context) (uint64, error) {
	if err := f.fail("ContractCounter"); err != nil {
		return 0, err
	}
	var max uint64
	for id := range f.contracts {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (f *fakeLedger) GetRentContract(_ context.Context, id uint64) (rental.RentContract, error) {
	if err := f.fail("GetRentContract"); err != nil {
		return rental.RentContract{}, err
	}
	c, ok := f.contracts[id]
	if !ok {
		return rental.RentContract{}, errors.New("no such contract")
	}
	return c, nil
}

func (f *fakeLedger) GetPropertyRequests(_ context.Context, propertyID uint64) ([]rental.RentRequest, error) {
	if err := f.fail("GetPropertyRequests"); err != nil {
		return nil, err
	}
	return f.requests[propertyID], nil
}

func (f *fakeLedger) GetContractsByLandlord(_ context.Context, landlord common.Address) ([]uint64, error) {
	if err := f.fail("GetContractsByLandlord"); err != nil {
		return nil, err
	}
	return f.byLandlord[landlord], nil
}

func (f *fakeLedger) GetContractsByTenant(_ context.Context, tenant common.Address) ([]uint64, error) {
	if err := f.fail("GetContractsByTenant"); err != nil {
		return nil, err
	}
	return f.byTenant[tenant], nil
}

func (f *fakeLedger) FilterContractCreated(_ context.Context, _ uint64, tenant common.Address) ([]rental.ContractCreatedEvent, error) {
	if err := f.fail("FilterContractCreated"); err != nil {
		return nil, err
	}
	var out []rental.ContractCreatedEvent
	for _, ev := range f.created {
		if tenant == (common.Address{}) || ev.Tenant == tenant {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeLedger) FilterContractSigned(context.Context, uint64) ([]rental.ContractSignedEvent, error) {
	if err := f.fail("FilterContractSigned"); err != nil {
		return nil, err
	}
	return f.signed, nil
}

func (f *fakeLedger) FilterRentPaid(_ context.Context, _ uint64, tenant common.Address) ([]rental.RentPaidEvent, error) {
	if err := f.fail("FilterRentPaid"); err != nil {
		return nil, err
	}
	var out []rental.RentPaidEvent
	for _, ev := range f.paid {
		if tenant == (common.Address{}) || ev.Tenant == tenant {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeLedger) FilterRentRequested(context.Context, uint64) ([]rental.RentRequestedEvent, error) {
	if err := f.fail("FilterRentRequested"); err != nil {
		return nil, err
	}
	return f.requested, nil
}

func (f *fakeLedger) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

var (
	landlord = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tenant   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	stranger = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestListPropertiesAvailability(t *testing.T) {
	ledger := newFakeLedger()
	ledger.properties[1] = rental.Property{ID: 1, Owner: landlord, RawDescription: "Flat A", Available: true}
	ledger.properties[2] = rental.Property{ID: 2, Owner: landlord, RawDescription: "Flat B", Available: true}
	ledger.properties[3] = rental.Property{ID: 3, Owner: landlord, RawDescription: "Flat C", Available: false}

	// Property 2 has an active contract: the raw flag alone must not win.
	ledger.contracts[1] = rental.RentContract{
		ID: 1, PropertyID: 2, Landlord: landlord, Tenant: tenant,
		MonthlyRent: big.NewInt(1), TotalMonths: 12, Status: rental.StatusActive,
	}
	// A cancelled contract on property 1 does not occupy it.
	ledger.contracts[2] = rental.RentContract{
		ID: 2, PropertyID: 1, Landlord: landlord, Tenant: tenant,
		MonthlyRent: big.NewInt(1), TotalMonths: 12, Status: rental.StatusCancelled,
	}

	rec := New(ledger, 0)
	views, err := rec.ListProperties(context.Background(), common.Address{})
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, uint64(1), views[0].ID)
	assert.True(t, views[0].Available, "cancelled contract must not occupy")
	assert.False(t, views[1].Available, "active contract overrides the raw flag")
	assert.False(t, views[2].Available, "raw flag false stays unavailable")
}

func TestListPropertiesCancelledAndActiveOnSameProperty(t *testing.T) {
	ledger := newFakeLedger()
	ledger.properties[7] = rental.Property{ID: 7, Owner: landlord, RawDescription: "Flat", Available: true}

	// History: an earlier contract was cancelled, then a new one went active.
	ledger.contracts[1] = rental.RentContract{
		ID: 1, PropertyID: 7, Landlord: landlord, Tenant: tenant,
		MonthlyRent: big.NewInt(1), Status: rental.StatusCancelled,
	}
	ledger.contracts[2] = rental.RentContract{
		ID: 2, PropertyID: 7, Landlord: landlord, Tenant: stranger,
		MonthlyRent: big.NewInt(1), Status: rental.StatusActive,
	}

	rec := New(ledger, 0)
	views, err := rec.ListProperties(context.Background(), common.Address{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].Available, "one active contract is enough to occupy")
}

func TestListPropertiesRequestSupersededByContract(t *testing.T) {
	ledger := newFakeLedger()
	ledger.properties[1] = rental.Property{ID: 1, Owner: landlord, RawDescription: "Flat", Available: true}
	ledger.requests[1] = []rental.RentRequest{{Tenant: tenant}}
	ledger.contracts[1] = rental.RentContract{
		ID: 1, PropertyID: 1, Landlord: landlord, Tenant: tenant,
		MonthlyRent: big.NewInt(1), Status: rental.StatusActive,
	}

	// The request record still exists on chain, but the contract for the
	// same tenant and property supersedes it.
	rec := New(ledger, 0)
	views, err := rec.ListProperties(context.Background(), tenant)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].HasRequested)
	assert.False(t, views[0].Available)
}

func TestListPropertiesCancelledContractDoesNotSupersedeRequest(t *testing.T) {
	ledger := newFakeLedger()
	ledger.properties[1] = rental.Property{ID: 1, Owner: landlord, RawDescription: "Flat", Available: true}
	ledger.requests[1] = []rental.RentRequest{{Tenant: tenant}}
	ledger.contracts[1] = rental.RentContract{
		ID: 1, PropertyID: 1, Landlord: landlord, Tenant: tenant,
		MonthlyRent: big.NewInt(1), Status: rental.StatusCancelled,
	}

	rec := New(ledger, 0)
	views, err := rec.ListProperties(context.Background(), tenant)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].HasRequested)
	assert.True(t, views[0].Available)
}

func TestListPropertiesDecodesDescriptions(t *testing.T) {
	ledger := newFakeLedger()
	ledger.properties[1] = rental.Property{
		ID: 1, Owner: landlord, Available: true,
		RawDescription: "My flat |IMG| https://img.example/1.jpg |LOC| Roma Norte |PRICE_MXN| 12000",
	}

	rec := New(ledger, 0)
	views, err := rec.ListProperties(context.Background(), common.Address{})
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.Equal(t, "My flat", views[0].Description)
	assert.Equal(t, "https://img.example/1.jpg", views[0].ImageURL)
	assert.Equal(t, "Roma Norte", views[0].Location)
	require.NotNil(t, views[0].Price)
	assert.Equal(t, rental.CurrencyMXN, views[0].Price.Currency)
}

func TestListPropertiesViewerRequestFlag(t *testing.T) {
	ledger := newFakeLedger()
	ledger.properties[1] = rental.Property{ID: 1, Owner: landlord, RawDescription: "A", Available: true}
	ledger.properties[2] = rental.Property{ID: 2, Owner: landlord, RawDescription: "B", Available: true}
	ledger.requests[1] = []rental.RentRequest{{Tenant: tenant}}
	ledger.requests[2] = []rental.RentRequest{{Tenant: stranger}}

	rec := New(ledger, 0)
	views, err := rec.ListProperties(context.Background(), tenant)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.True(t, views[0].HasRequested)
	assert.False(t, views[1].HasRequested)
}

func TestListPropertiesOmitsFailedLookups(t *testing.T) {
	ledger := newFakeLedger()
	// Counter says two properties but only one resolves.
	ledger.properties[2] = rental.Property{ID: 2, Owner: landlord, RawDescription: "B", Available: true}

	rec := New(ledger, 0)
	views, err := rec.ListProperties(context.Background(), common.Address{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint64(2), views[0].ID)
}

func TestListContractsForRolePartition(t *testing.T) {
	ledger := newFakeLedger()
	ledger.contracts[1] = rental.RentContract{ID: 1, PropertyID: 1, Landlord: landlord, Tenant: tenant, MonthlyRent: big.NewInt(1), Status: rental.StatusActive}
	ledger.contracts[2] = rental.RentContract{ID: 2, PropertyID: 2, Landlord: landlord, Tenant: tenant, MonthlyRent: big.NewInt(1), Status: rental.StatusPending}
	ledger.contracts[3] = rental.RentContract{ID: 3, PropertyID: 3, Landlord: landlord, Tenant: tenant, MonthlyRent: big.NewInt(1), Status: rental.StatusCancelled}
	ledger.byLandlord[landlord] = []uint64{3, 1, 2}

	rec := New(ledger, 0)
	view, err := rec.ListContractsForRole(context.Background(), landlord, RoleLandlord)
	require.NoError(t, err)

	require.Len(t, view.AwaitingSignature, 1)
	assert.Equal(t, uint64(2), view.AwaitingSignature[0].ID)

	require.Len(t, view.ActiveOrResolved, 2)
	assert.Equal(t, uint64(1), view.ActiveOrResolved[0].ID)
	assert.Equal(t, uint64(3), view.ActiveOrResolved[1].ID)
}

func TestListContractsForRoleSkipsUnresolvable(t *testing.T) {
	ledger := newFakeLedger()
	ledger.contracts[1] = rental.RentContract{ID: 1, PropertyID: 1, Landlord: landlord, Tenant: tenant, MonthlyRent: big.NewInt(1), Status: rental.StatusActive}
	ledger.byTenant[tenant] = []uint64{1, 99}

	rec := New(ledger, 0)
	view, err := rec.ListContractsForRole(context.Background(), tenant, RoleTenant)
	require.NoError(t, err)
	assert.Len(t, view.ActiveOrResolved, 1)
	assert.Empty(t, view.AwaitingSignature)
}

func TestListContractsForRoleUnknownRole(t *testing.T) {
	rec := New(newFakeLedger(), 0)
	_, err := rec.ListContractsForRole(context.Background(), landlord, Role("broker"))

	var roleErr *UnknownRoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, Role("broker"), roleErr.Role)
}

func TestListPropertiesEmptyLedger(t *testing.T) {
	rec := New(newFakeLedger(), 0)
	views, err := rec.ListProperties(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.Empty(t, views)
}
