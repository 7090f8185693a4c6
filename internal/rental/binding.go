package rental

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ABI of the deployed SecureRent contract. The contract itself is external;
// this is the client-side binding surface only.
const rentalABI = `[
	{"type":"function","name":"propertyCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"contractCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getProperty","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"id","type":"uint256"},{"name":"owner","type":"address"},{"name":"description","type":"string"},{"name":"isAvailable","type":"bool"}]}]},
	{"type":"function","name":"getRentContract","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"id","type":"uint256"},{"name":"propertyId","type":"uint256"},{"name":"landlord","type":"address"},{"name":"tenant","type":"address"},{"name":"monthlyRent","type":"uint256"},{"name":"monthsPaid","type":"uint256"},{"name":"totalMonths","type":"uint256"},{"name":"status","type":"uint8"}]}]},
	{"type":"function","name":"getPropertyRequests","stateMutability":"view","inputs":[{"name":"propertyId","type":"uint256"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"tenant","type":"address"},{"name":"timestamp","type":"uint256"}]}]},
	{"type":"function","name":"getContractsByLandlord","stateMutability":"view","inputs":[{"name":"landlord","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"getContractsByTenant","stateMutability":"view","inputs":[{"name":"tenant","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"createProperty","stateMutability":"nonpayable","inputs":[{"name":"description","type":"string"}],"outputs":[]},
	{"type":"function","name":"createRentContract","stateMutability":"nonpayable","inputs":[{"name":"propertyId","type":"uint256"},{"name":"tenant","type":"address"},{"name":"monthlyRent","type":"uint256"},{"name":"totalMonths","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"requestRent","stateMutability":"nonpayable","inputs":[{"name":"propertyId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"signRentContract","stateMutability":"nonpayable","inputs":[{"name":"contractId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"payMonthlyRent","stateMutability":"payable","inputs":[{"name":"contractId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"cancelContract","stateMutability":"nonpayable","inputs":[{"name":"contractId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"ContractCreated","inputs":[{"name":"contractId","type":"uint256","indexed":true},{"name":"propertyId","type":"uint256","indexed":false},{"name":"landlord","type":"address","indexed":false},{"name":"tenant","type":"address","indexed":true}]},
	{"type":"event","name":"ContractSigned","inputs":[{"name":"contractId","type":"uint256","indexed":true},{"name":"tenant","type":"address","indexed":false}]},
	{"type":"event","name":"RentPaid","inputs":[{"name":"contractId","type":"uint256","indexed":true},{"name":"tenant","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"monthsPaid","type":"uint256","indexed":false}]},
	{"type":"event","name":"RentRequested","inputs":[{"name":"propertyId","type":"uint256","indexed":true},{"name":"tenant","type":"address","indexed":true}]}
]`

// TransactOptsFactory produces fresh transact options for one submission.
// A Binding without one is read-only.
type TransactOptsFactory func(ctx context.Context) (*bind.TransactOpts, error)

// Binding is the ethclient-backed implementation of Contract.
type Binding struct {
	client    *ethclient.Client
	address   common.Address
	parsedABI abi.ABI
	bound     *bind.BoundContract
	signer    TransactOptsFactory
}

var _ Contract = (*Binding)(nil)

// NewBinding binds the rental contract at address through client. signer may
// be nil, which yields a read-only handle whose write methods fail.
func NewBinding(client *ethclient.Client, address common.Address, signer TransactOptsFactory) (*Binding, error) {
	parsed, err := abi.JSON(strings.NewReader(rentalABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	return &Binding{
		client:    client,
		address:   address,
		parsedABI: parsed,
		bound:     bind.NewBoundContract(address, parsed, client, client, client),
		signer:    signer,
	}, nil
}

type propertyResult struct {
	Id          *big.Int
	Owner       common.Address
	Description string
	IsAvailable bool
}

type rentContractResult struct {
	Id          *big.Int
	PropertyId  *big.Int
	Landlord    common.Address
	Tenant      common.Address
	MonthlyRent *big.Int
	MonthsPaid  *big.Int
	TotalMonths *big.Int
	Status      uint8
}

type rentRequestResult struct {
	Tenant    common.Address
	Timestamp *big.Int
}

func (b *Binding) PropertyCounter(ctx context.Context) (uint64, error) {
	return b.counter(ctx, "propertyCounter")
}

func (b *Binding) ContractCounter(ctx context.Context) (uint64, error) {
	return b.counter(ctx, "contractCounter")
}

func (b *Binding) counter(ctx context.Context, method string) (uint64, error) {
	var out []interface{}
	if err := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return 0, fmt.Errorf("%s: %w", method, err)
	}
	return (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64(), nil
}

func (b *Binding) GetProperty(ctx context.Context, id uint64) (Property, error) {
	var out []interface{}
	err := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getProperty", new(big.Int).SetUint64(id))
	if err != nil {
		return Property{}, fmt.Errorf("getProperty %d: %w", id, err)
	}
	res := *abi.ConvertType(out[0], new(propertyResult)).(*propertyResult)
	return Property{
		ID:             res.Id.Uint64(),
		Owner:          res.Owner,
		RawDescription: res.Description,
		Available:      res.IsAvailable,
	}, nil
}

func (b *Binding) GetRentContract(ctx context.Context, id uint64) (RentContract, error) {
	var out []interface{}
	err := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getRentContract", new(big.Int).SetUint64(id))
	if err != nil {
		return RentContract{}, fmt.Errorf("getRentContract %d: %w", id, err)
	}
	res := *abi.ConvertType(out[0], new(rentContractResult)).(*rentContractResult)
	return RentContract{
		ID:          res.Id.Uint64(),
		PropertyID:  res.PropertyId.Uint64(),
		Landlord:    res.Landlord,
		Tenant:      res.Tenant,
		MonthlyRent: res.MonthlyRent,
		MonthsPaid:  uint32(res.MonthsPaid.Uint64()),
		TotalMonths: uint32(res.TotalMonths.Uint64()),
		Status:      Status(res.Status),
	}, nil
}

func (b *Binding) GetPropertyRequests(ctx context.Context, propertyID uint64) ([]RentRequest, error) {
	var out []interface{}
	err := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getPropertyRequests", new(big.Int).SetUint64(propertyID))
	if err != nil {
		return nil, fmt.Errorf("getPropertyRequests %d: %w", propertyID, err)
	}
	res := *abi.ConvertType(out[0], new([]rentRequestResult)).(*[]rentRequestResult)
	requests := make([]RentRequest, len(res))
	for i, r := range res {
		requests[i] = RentRequest{
			Tenant:    r.Tenant,
			Timestamp: time.Unix(r.Timestamp.Int64(), 0).UTC(),
		}
	}
	return requests, nil
}

func (b *Binding) GetContractsByLandlord(ctx context.Context, landlord common.Address) ([]uint64, error) {
	return b.idList(ctx, "getContractsByLandlord", landlord)
}

func (b *Binding) GetContractsByTenant(ctx context.Context, tenant common.Address) ([]uint64, error) {
	return b.idList(ctx, "getContractsByTenant", tenant)
}

func (b *Binding) idList(ctx context.Context, method string, account common.Address) ([]uint64, error) {
	var out []interface{}
	if err := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, account); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	raw := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	ids := make([]uint64, len(raw))
	for i, v := range raw {
		ids[i] = v.Uint64()
	}
	return ids, nil
}

func (b *Binding) BlockNumber(ctx context.Context) (uint64, error) {
	return b.client.BlockNumber(ctx)
}

// --- writes ---

func (b *Binding) CreateProperty(ctx context.Context, rawDescription string) (common.Hash, error) {
	return b.transact(ctx, "createProperty", nil, rawDescription)
}

func (b *Binding) CreateRentContract(ctx context.Context, propertyID uint64, tenant common.Address, monthlyRentWei *big.Int, totalMonths uint32) (common.Hash, error) {
	return b.transact(ctx, "createRentContract", nil,
		new(big.Int).SetUint64(propertyID), tenant, monthlyRentWei, new(big.Int).SetUint64(uint64(totalMonths)))
}

func (b *Binding) RequestRent(ctx context.Context, propertyID uint64) (common.Hash, error) {
	return b.transact(ctx, "requestRent", nil, new(big.Int).SetUint64(propertyID))
}

func (b *Binding) SignRentContract(ctx context.Context, contractID uint64) (common.Hash, error) {
	return b.transact(ctx, "signRentContract", nil, new(big.Int).SetUint64(contractID))
}

func (b *Binding) PayMonthlyRent(ctx context.Context, contractID uint64, amountWei *big.Int) (common.Hash, error) {
	return b.transact(ctx, "payMonthlyRent", amountWei, new(big.Int).SetUint64(contractID))
}

func (b *Binding) CancelContract(ctx context.Context, contractID uint64) (common.Hash, error) {
	return b.transact(ctx, "cancelContract", nil, new(big.Int).SetUint64(contractID))
}

// transact submits one state-changing call and waits for it to be mined.
// There is no timeout here on purpose: a submitted transaction is a ledger
// commitment, the context can only stop the waiting.
func (b *Binding) transact(ctx context.Context, method string, value *big.Int, args ...interface{}) (common.Hash, error) {
	if b.signer == nil {
		return common.Hash{}, fmt.Errorf("%s: no signer bound to contract handle", method)
	}

	opts, err := b.signer(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", method, err)
	}
	opts.Context = ctx
	if value != nil {
		opts.Value = value
	}

	tx, err := b.bound.Transact(opts, method, args...)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return common.Hash{}, &RevertError{Op: method, Reason: reason}
		}
		return common.Hash{}, fmt.Errorf("%s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, b.client, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("%s: waiting for confirmation: %w", method, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return tx.Hash(), &RevertError{Op: method}
	}

	return tx.Hash(), nil
}

// revertReason extracts the human-readable revert string the node embeds in
// gas-estimation errors, when present.
func revertReason(err error) (string, bool) {
	const marker = "execution reverted"
	msg := err.Error()
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	reason := strings.TrimLeft(msg[idx+len(marker):], ": ")
	return reason, true
}

// --- event log queries ---

func (b *Binding) FilterContractCreated(ctx context.Context, fromBlock uint64, tenant common.Address) ([]ContractCreatedEvent, error) {
	var tenantTopic []interface{}
	if tenant != (common.Address{}) {
		tenantTopic = []interface{}{tenant}
	}
	logs, err := b.filterLogs(ctx, fromBlock, "ContractCreated", nil, tenantTopic)
	if err != nil {
		return nil, err
	}

	events := make([]ContractCreatedEvent, 0, len(logs))
	for _, lg := range logs {
		var ev struct {
			ContractId *big.Int
			PropertyId *big.Int
			Landlord   common.Address
			Tenant     common.Address
		}
		if err := b.bound.UnpackLog(&ev, "ContractCreated", lg); err != nil {
			return nil, fmt.Errorf("unpack ContractCreated: %w", err)
		}
		events = append(events, ContractCreatedEvent{
			ContractID:  ev.ContractId.Uint64(),
			PropertyID:  ev.PropertyId.Uint64(),
			Landlord:    ev.Landlord,
			Tenant:      ev.Tenant,
			TxHash:      lg.TxHash,
			BlockNumber: lg.BlockNumber,
		})
	}
	return events, nil
}

func (b *Binding) FilterContractSigned(ctx context.Context, fromBlock uint64) ([]ContractSignedEvent, error) {
	logs, err := b.filterLogs(ctx, fromBlock, "ContractSigned", nil)
	if err != nil {
		return nil, err
	}

	events := make([]ContractSignedEvent, 0, len(logs))
	for _, lg := range logs {
		var ev struct {
			ContractId *big.Int
			Tenant     common.Address
		}
		if err := b.bound.UnpackLog(&ev, "ContractSigned", lg); err != nil {
			return nil, fmt.Errorf("unpack ContractSigned: %w", err)
		}
		events = append(events, ContractSignedEvent{
			ContractID:  ev.ContractId.Uint64(),
			Tenant:      ev.Tenant,
			TxHash:      lg.TxHash,
			BlockNumber: lg.BlockNumber,
		})
	}
	return events, nil
}

func (b *Binding) FilterRentPaid(ctx context.Context, fromBlock uint64, tenant common.Address) ([]RentPaidEvent, error) {
	var tenantTopic []interface{}
	if tenant != (common.Address{}) {
		tenantTopic = []interface{}{tenant}
	}
	logs, err := b.filterLogs(ctx, fromBlock, "RentPaid", nil, tenantTopic)
	if err != nil {
		return nil, err
	}

	events := make([]RentPaidEvent, 0, len(logs))
	for _, lg := range logs {
		var ev struct {
			ContractId *big.Int
			Tenant     common.Address
			Amount     *big.Int
			MonthsPaid *big.Int
		}
		if err := b.bound.UnpackLog(&ev, "RentPaid", lg); err != nil {
			return nil, fmt.Errorf("unpack RentPaid: %w", err)
		}
		events = append(events, RentPaidEvent{
			ContractID:  ev.ContractId.Uint64(),
			Tenant:      ev.Tenant,
			Amount:      ev.Amount,
			MonthsPaid:  uint32(ev.MonthsPaid.Uint64()),
			TxHash:      lg.TxHash,
			BlockNumber: lg.BlockNumber,
		})
	}
	return events, nil
}

func (b *Binding) FilterRentRequested(ctx context.Context, fromBlock uint64) ([]RentRequestedEvent, error) {
	logs, err := b.filterLogs(ctx, fromBlock, "RentRequested", nil)
	if err != nil {
		return nil, err
	}

	events := make([]RentRequestedEvent, 0, len(logs))
	for _, lg := range logs {
		var ev struct {
			PropertyId *big.Int
			Tenant     common.Address
		}
		if err := b.bound.UnpackLog(&ev, "RentRequested", lg); err != nil {
			return nil, fmt.Errorf("unpack RentRequested: %w", err)
		}
		events = append(events, RentRequestedEvent{
			PropertyID:  ev.PropertyId.Uint64(),
			Tenant:      ev.Tenant,
			TxHash:      lg.TxHash,
			BlockNumber: lg.BlockNumber,
		})
	}
	return events, nil
}

func (b *Binding) filterLogs(ctx context.Context, fromBlock uint64, event string, indexed ...[]interface{}) ([]types.Log, error) {
	ev, ok := b.parsedABI.Events[event]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", event)
	}

	topics := [][]common.Hash{{ev.ID}}
	for _, values := range indexed {
		if values == nil {
			topics = append(topics, nil)
			continue
		}
		packed, err := abi.MakeTopics(values)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", event, err)
		}
		topics = append(topics, packed[0])
	}

	logs, err := b.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{b.address},
		Topics:    topics,
	})
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", event, err)
	}
	return logs, nil
}
