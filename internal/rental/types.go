package rental

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the lifecycle state of a rent contract as stored on chain.
// Transitions are enforced by the contract, never computed client-side.
type Status uint8

const (
	StatusPending   Status = 0 // waiting for the tenant's signature
	StatusActive    Status = 1
	StatusFinished  Status = 2
	StatusCancelled Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending-signature"
	case StatusActive:
		return "active"
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Property is the raw on-chain property record. RawDescription carries the
// composite-encoded display fields, see description.go.
type Property struct {
	ID             uint64
	Owner          common.Address
	RawDescription string
	Available      bool
}

// RentContract mirrors the on-chain rent contract struct. MonthlyRent is in wei.
type RentContract struct {
	ID          uint64
	PropertyID  uint64
	Landlord    common.Address
	Tenant      common.Address
	MonthlyRent *big.Int
	MonthsPaid  uint32
	TotalMonths uint32
	Status      Status
}

// RentRequest is a prospective tenant's expression of interest in a property.
type RentRequest struct {
	Tenant    common.Address
	Timestamp time.Time
}

// Event log records, one type per contract event class. TxHash and BlockNumber
// come from the log entry itself.

type ContractCreatedEvent struct {
	ContractID  uint64
	PropertyID  uint64
	Landlord    common.Address
	Tenant      common.Address
	TxHash      common.Hash
	BlockNumber uint64
}

type ContractSignedEvent struct {
	ContractID  uint64
	Tenant      common.Address
	TxHash      common.Hash
	BlockNumber uint64
}

type RentPaidEvent struct {
	ContractID  uint64
	Tenant      common.Address
	Amount      *big.Int
	MonthsPaid  uint32
	TxHash      common.Hash
	BlockNumber uint64
}

type RentRequestedEvent struct {
	PropertyID  uint64
	Tenant      common.Address
	TxHash      common.Hash
	BlockNumber uint64
}
