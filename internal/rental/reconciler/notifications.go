package reconciler

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	clientstatedb "github.com/securerent/securerent-client/internal/database"
	"github.com/securerent/securerent-client/internal/logger"
	"github.com/securerent/securerent-client/internal/rental"
)

// Kind classifies a derived notification.
type Kind string

const (
	KindSigned          Kind = "signed"
	KindPaymentReceived Kind = "payment-received"
	KindPaymentSent     Kind = "payment-sent"
	KindRequested       Kind = "requested"
	KindCreated         Kind = "created"
)

// Notification is derived from event logs each pass; nothing but the read
// flag is persisted. The id is the originating transaction hash plus the kind
// suffix, so the same RentPaid event yields distinct landlord and tenant
// notifications. If the contract ever emitted two same-kind events in one
// transaction those ids would collide; that gap is inherited from the id
// scheme and kept as is.
type Notification struct {
	ID             string         `json:"id"`
	Kind           Kind           `json:"kind"`
	Message        string         `json:"message"`
	RelatedAccount common.Address `json:"relatedAccount"`
	BlockNumber    uint64         `json:"blockNumber"`
	Read           bool           `json:"read"`
}

// Feed is the assembled notification view for one account.
type Feed struct {
	Notifications []Notification `json:"notifications"`
	Unread        int            `json:"unread"`
}

func notificationID(tx common.Hash, kind Kind) string {
	return tx.Hex() + "-" + string(kind)
}

// DeriveNotifications scans the four event classes and keeps the ones where
// the account plays the relevant role. Each event query fails independently:
// a failed class is logged and skipped, the rest still surface. Two passes
// over an unchanged ledger produce set-equal feeds.
func (r *Reconciler) DeriveNotifications(ctx context.Context, account common.Address) (Feed, error) {
	from := r.scanFromBlock
	byID := make(map[string]Notification)
	scannedClasses := 0

	contracts := newContractCache(r.contract)
	properties := newPropertyCache(r.contract)

	// Tenant signed one of the account's contracts.
	if events, err := r.contract.FilterContractSigned(ctx, from); err != nil {
		logger.Error("deriving notifications: signature events:", err)
	} else {
		scannedClasses++
		for _, ev := range events {
			c, err := contracts.get(ctx, ev.ContractID)
			if err != nil {
				logger.Error("deriving notifications: resolving contract", ev.ContractID, ":", err)
				continue
			}
			if c.Landlord != account {
				continue
			}
			addNotification(byID, Notification{
				ID:             notificationID(ev.TxHash, KindSigned),
				Kind:           KindSigned,
				Message:        fmt.Sprintf("Contract #%d was signed by the tenant and is now active", ev.ContractID),
				RelatedAccount: ev.Tenant,
				BlockNumber:    ev.BlockNumber,
			})
		}
	}

	// Rent paid: surfaces for the landlord as received and for the tenant as
	// sent, from the same underlying event, under different id suffixes.
	if events, err := r.contract.FilterRentPaid(ctx, from, common.Address{}); err != nil {
		logger.Error("deriving notifications: payment events:", err)
	} else {
		scannedClasses++
		for _, ev := range events {
			c, err := contracts.get(ctx, ev.ContractID)
			if err != nil {
				logger.Error("deriving notifications: resolving contract", ev.ContractID, ":", err)
				continue
			}
			if c.Landlord == account {
				addNotification(byID, Notification{
					ID:             notificationID(ev.TxHash, KindPaymentReceived),
					Kind:           KindPaymentReceived,
					Message:        fmt.Sprintf("Payment received for contract #%d (month %d of %d)", ev.ContractID, ev.MonthsPaid, c.TotalMonths),
					RelatedAccount: ev.Tenant,
					BlockNumber:    ev.BlockNumber,
				})
			}
			if ev.Tenant == account {
				addNotification(byID, Notification{
					ID:             notificationID(ev.TxHash, KindPaymentSent),
					Kind:           KindPaymentSent,
					Message:        fmt.Sprintf("Your rent payment for contract #%d was confirmed (month %d of %d)", ev.ContractID, ev.MonthsPaid, c.TotalMonths),
					RelatedAccount: c.Landlord,
					BlockNumber:    ev.BlockNumber,
				})
			}
		}
	}

	// Someone requested to rent one of the account's properties.
	if events, err := r.contract.FilterRentRequested(ctx, from); err != nil {
		logger.Error("deriving notifications: request events:", err)
	} else {
		scannedClasses++
		for _, ev := range events {
			p, err := properties.get(ctx, ev.PropertyID)
			if err != nil {
				logger.Error("deriving notifications: resolving property", ev.PropertyID, ":", err)
				continue
			}
			if p.Owner != account {
				continue
			}
			addNotification(byID, Notification{
				ID:             notificationID(ev.TxHash, KindRequested),
				Kind:           KindRequested,
				Message:        fmt.Sprintf("New rent request for property #%d", ev.PropertyID),
				RelatedAccount: ev.Tenant,
				BlockNumber:    ev.BlockNumber,
			})
		}
	}

	// A landlord drew up a contract naming the account as tenant.
	if events, err := r.contract.FilterContractCreated(ctx, from, account); err != nil {
		logger.Error("deriving notifications: creation events:", err)
	} else {
		scannedClasses++
		for _, ev := range events {
			addNotification(byID, Notification{
				ID:             notificationID(ev.TxHash, KindCreated),
				Kind:           KindCreated,
				Message:        fmt.Sprintf("Contract #%d for property #%d is awaiting your signature", ev.ContractID, ev.PropertyID),
				RelatedAccount: ev.Landlord,
				BlockNumber:    ev.BlockNumber,
			})
		}
	}

	readIDs, err := clientstatedb.GetReadNotificationIDs(account.Hex())
	if err != nil {
		// Without the read set everything surfaces as unread; better than
		// dropping the feed.
		logger.Error("deriving notifications: loading read set:", err)
		readIDs = map[string]bool{}
	}

	feed := Feed{Notifications: make([]Notification, 0, len(byID))}
	for _, n := range byID {
		n.Read = readIDs[n.ID]
		if !n.Read {
			feed.Unread++
		}
		feed.Notifications = append(feed.Notifications, n)
	}

	sort.Slice(feed.Notifications, func(i, j int) bool {
		a, b := feed.Notifications[i], feed.Notifications[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber > b.BlockNumber
		}
		return a.ID < b.ID
	})

	// A pass where every event class failed saw nothing; leave the cursor
	// where it was.
	if scannedClasses > 0 {
		r.recordScanHead(ctx)
	}
	return feed, nil
}

// MarkRead adds ids to the account's persisted read set. The set only grows;
// marking an already-read id is a no-op.
func (r *Reconciler) MarkRead(account common.Address, ids []string) error {
	return clientstatedb.MarkNotificationsRead(account.Hex(), ids)
}

func addNotification(byID map[string]Notification, n Notification) {
	if _, exists := byID[n.ID]; exists {
		return
	}
	byID[n.ID] = n
}

// recordScanHead persists the ledger head after a successful pass. Derivation
// always rescans from the configured deployment block (re-derivation keeps
// the feed idempotent); the cursor is kept for status reporting.
func (r *Reconciler) recordScanHead(ctx context.Context) {
	head, err := r.contract.BlockNumber(ctx)
	if err != nil {
		logger.Error("deriving notifications: reading ledger head:", err)
		return
	}
	if err := clientstatedb.SetLastScannedBlock(head); err != nil {
		logger.Error("deriving notifications: persisting scan cursor:", err)
	}
}

// contractCache memoizes GetRentContract lookups within one derivation pass.
type contractCache struct {
	contract rental.Reader
	cache    map[uint64]rental.RentContract
}

func newContractCache(c rental.Reader) *contractCache {
	return &contractCache{contract: c, cache: make(map[uint64]rental.RentContract)}
}

func (cc *contractCache) get(ctx context.Context, id uint64) (rental.RentContract, error) {
	if c, ok := cc.cache[id]; ok {
		return c, nil
	}
	c, err := cc.contract.GetRentContract(ctx, id)
	if err != nil {
		return rental.RentContract{}, err
	}
	cc.cache[id] = c
	return c, nil
}

type propertyCache struct {
	contract rental.Reader
	cache    map[uint64]rental.Property
}

func newPropertyCache(c rental.Reader) *propertyCache {
	return &propertyCache{contract: c, cache: make(map[uint64]rental.Property)}
}

func (pc *propertyCache) get(ctx context.Context, id uint64) (rental.Property, error) {
	if p, ok := pc.cache[id]; ok {
		return p, nil
	}
	p, err := pc.contract.GetProperty(ctx, id)
	if err != nil {
		return rental.Property{}, err
	}
	pc.cache[id] = p
	return p, nil
}
