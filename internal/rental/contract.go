package rental

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reader is the read-only surface of the deployed rental contract. It mirrors
// the generated binding one to one; every call suspends on the ledger.
type Reader interface {
	PropertyCounter(ctx context.Context) (uint64, error)
	GetProperty(ctx context.Context, id uint64) (Property, error)
	ContractCounter(ctx context.Context) (uint64, error)
	GetRentContract(ctx context.Context, id uint64) (RentContract, error)
	GetPropertyRequests(ctx context.Context, propertyID uint64) ([]RentRequest, error)
	GetContractsByLandlord(ctx context.Context, landlord common.Address) ([]uint64, error)
	GetContractsByTenant(ctx context.Context, tenant common.Address) ([]uint64, error)

	// Event log queries. fromBlock of 0 scans from genesis. A zero filter value
	// (zero id, zero address) means "unfiltered" for that indexed field.
	FilterContractCreated(ctx context.Context, fromBlock uint64, tenant common.Address) ([]ContractCreatedEvent, error)
	FilterContractSigned(ctx context.Context, fromBlock uint64) ([]ContractSignedEvent, error)
	FilterRentPaid(ctx context.Context, fromBlock uint64, tenant common.Address) ([]RentPaidEvent, error)
	FilterRentRequested(ctx context.Context, fromBlock uint64) ([]RentRequestedEvent, error)

	// BlockNumber reports the ledger head, used as the scan cursor.
	BlockNumber(ctx context.Context) (uint64, error)
}

// Writer is the state-changing surface. Each call submits a signed transaction
// and waits for confirmation; there is no client-imposed timeout, cancelling
// the context only stops the wait, never the transaction. The returned hash
// identifies the confirmed transaction.
type Writer interface {
	CreateProperty(ctx context.Context, rawDescription string) (common.Hash, error)
	CreateRentContract(ctx context.Context, propertyID uint64, tenant common.Address, monthlyRentWei *big.Int, totalMonths uint32) (common.Hash, error)
	RequestRent(ctx context.Context, propertyID uint64) (common.Hash, error)
	SignRentContract(ctx context.Context, contractID uint64) (common.Hash, error)
	PayMonthlyRent(ctx context.Context, contractID uint64, amountWei *big.Int) (common.Hash, error)
	CancelContract(ctx context.Context, contractID uint64) (common.Hash, error)
}

// Contract is the full signer-bound handle. A read-only session only ever sees
// the Reader half.
type Contract interface {
	Reader
	Writer
}
