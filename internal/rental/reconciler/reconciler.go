// Package reconciler merges raw ledger reads and event logs into consistent,
// role-aware view models. The ledger is the only source of truth; everything
// here is a re-derivable projection, so every operation is idempotent for an
// unchanged ledger and a single failed sub-read degrades the result instead
// of aborting it.
package reconciler

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/workerpool"

	"github.com/securerent/securerent-client/internal/logger"
	"github.com/securerent/securerent-client/internal/rental"
)

const fetchWorkers = 8

// PropertyView is a display-ready property record.
type PropertyView struct {
	ID           uint64               `json:"id"`
	Owner        common.Address       `json:"owner"`
	Description  string               `json:"description"`
	ImageURL     string               `json:"imageUrl,omitempty"`
	Location     string               `json:"location,omitempty"`
	Price        *rental.PriceTag     `json:"price,omitempty"`
	Available    bool                 `json:"available"`
	HasRequested bool                 `json:"hasRequested"`
	Requests     []rental.RentRequest `json:"-"`
}

// Role selects which side of a rent contract an account list is resolved for.
type Role string

const (
	RoleLandlord Role = "landlord"
	RoleTenant   Role = "tenant"
)

// ContractsView partitions an account's contracts into those still awaiting
// the counterparty's signature and everything active or resolved.
type ContractsView struct {
	AwaitingSignature []rental.RentContract `json:"awaitingSignature"`
	ActiveOrResolved  []rental.RentContract `json:"activeOrResolved"`
}

// Reconciler issues read calls against a bound contract handle and assembles
// view models. It holds no ledger state of its own.
type Reconciler struct {
	contract rental.Reader
	// scanFromBlock is the contract deployment height; event derivation
	// rescans from here every pass.
	scanFromBlock uint64
}

func New(contract rental.Reader, scanFromBlock uint64) *Reconciler {
	return &Reconciler{contract: contract, scanFromBlock: scanFromBlock}
}

// ListProperties fetches every property, decodes its composite description
// and computes true availability: the raw on-chain flag AND the absence of an
// active contract for the property. The two signals can disagree transiently
// and neither is trusted alone. When viewer is non-zero, each property is
// flagged with whether that viewer has an outstanding rent request on it.
//
// Individual lookups run concurrently; the aggregate is assembled only after
// all of them settle. A failed lookup is logged and its record omitted.
func (r *Reconciler) ListProperties(ctx context.Context, viewer common.Address) ([]PropertyView, error) {
	scan, err := r.scanContracts(ctx)
	if err != nil {
		return nil, err
	}

	total, err := r.contract.PropertyCounter(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	views := make([]PropertyView, 0, total)

	wp := workerpool.New(fetchWorkers)
	for id := uint64(1); id <= total; id++ {
		id := id
		wp.Submit(func() {
			view, err := r.fetchProperty(ctx, id, viewer, scan)
			if err != nil {
				logger.Error("listing properties: property", id, ":", err)
				return
			}
			mu.Lock()
			views = append(views, view)
			mu.Unlock()
		})
	}
	wp.StopWait()

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

func (r *Reconciler) fetchProperty(ctx context.Context, id uint64, viewer common.Address, scan *contractScan) (PropertyView, error) {
	prop, err := r.contract.GetProperty(ctx, id)
	if err != nil {
		return PropertyView{}, err
	}

	decoded := rental.DecodeDescription(prop.RawDescription)

	view := PropertyView{
		ID:          prop.ID,
		Owner:       prop.Owner,
		Description: decoded.Text,
		ImageURL:    decoded.ImageURL,
		Location:    decoded.Location,
		Price:       decoded.Price,
		Available:   prop.Available && !scan.occupied[prop.ID],
	}

	if viewer != (common.Address{}) {
		requests, err := r.contract.GetPropertyRequests(ctx, id)
		if err != nil {
			// Requests are a secondary signal; keep the property.
			logger.Error("listing properties: requests for property", id, ":", err)
		} else {
			view.Requests = requests
			// A request is superseded once a live contract names the viewer
			// as tenant on the same property.
			if !scan.engaged[pairKey{prop.ID, viewer}] {
				for _, req := range requests {
					if req.Tenant == viewer {
						view.HasRequested = true
						break
					}
				}
			}
		}
	}

	return view, nil
}

type pairKey struct {
	propertyID uint64
	tenant     common.Address
}

type contractScan struct {
	// occupied holds property ids with an Active contract.
	occupied map[uint64]bool
	// engaged holds (property, tenant) pairs with a Pending or Active
	// contract; such a pair's rent request is superseded.
	engaged map[pairKey]bool
}

// scanContracts walks every rent contract once and indexes occupancy and
// engagement. Unresolvable contracts are skipped, not fatal.
func (r *Reconciler) scanContracts(ctx context.Context) (*contractScan, error) {
	total, err := r.contract.ContractCounter(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	scan := &contractScan{
		occupied: make(map[uint64]bool),
		engaged:  make(map[pairKey]bool),
	}

	wp := workerpool.New(fetchWorkers)
	for id := uint64(1); id <= total; id++ {
		id := id
		wp.Submit(func() {
			c, err := r.contract.GetRentContract(ctx, id)
			if err != nil {
				logger.Error("scanning contracts: contract", id, ":", err)
				return
			}
			if c.Status != rental.StatusActive && c.Status != rental.StatusPending {
				return
			}
			mu.Lock()
			if c.Status == rental.StatusActive {
				scan.occupied[c.PropertyID] = true
			}
			scan.engaged[pairKey{c.PropertyID, c.Tenant}] = true
			mu.Unlock()
		})
	}
	wp.StopWait()

	return scan, nil
}

// ListContractsForRole resolves the account's contract ids for the given role
// and partitions them. The ledger guarantees no ordering beyond id order, so
// both partitions are sorted by id ascending to keep output deterministic.
func (r *Reconciler) ListContractsForRole(ctx context.Context, account common.Address, role Role) (ContractsView, error) {
	var ids []uint64
	var err error

	switch role {
	case RoleLandlord:
		ids, err = r.contract.GetContractsByLandlord(ctx, account)
	case RoleTenant:
		ids, err = r.contract.GetContractsByTenant(ctx, account)
	default:
		return ContractsView{}, &UnknownRoleError{Role: role}
	}
	if err != nil {
		return ContractsView{}, err
	}

	view := ContractsView{
		AwaitingSignature: []rental.RentContract{},
		ActiveOrResolved:  []rental.RentContract{},
	}

	for _, id := range ids {
		c, err := r.contract.GetRentContract(ctx, id)
		if err != nil {
			logger.Error("listing contracts: contract", id, ":", err)
			continue
		}
		if c.Status == rental.StatusPending {
			view.AwaitingSignature = append(view.AwaitingSignature, c)
		} else {
			view.ActiveOrResolved = append(view.ActiveOrResolved, c)
		}
	}

	sortByID(view.AwaitingSignature)
	sortByID(view.ActiveOrResolved)
	return view, nil
}

func sortByID(list []rental.RentContract) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}

// UnknownRoleError reports a role string outside {landlord, tenant}.
type UnknownRoleError struct {
	Role Role
}

func (e *UnknownRoleError) Error() string {
	return "unknown contract role: " + string(e.Role)
}
