package api

import (
	"sync"

	"github.com/securerent/securerent-client/internal/oracle"
	"github.com/securerent/securerent-client/internal/rental/reconciler"
	"github.com/securerent/securerent-client/internal/wallet"
)

type API struct {
	Session    *wallet.Manager
	Reconciler *reconciler.Reconciler
	Oracle     *oracle.Cache
	HttpMode   bool

	// inFlight tracks pending write actions so a second submission of the
	// same logical action is refused until the first settles.
	inFlightMu sync.Mutex
	inFlight   map[string]bool
}

type AuthRequest struct {
	APIKey string `json:"api_key"`
}

type SessionResponse struct {
	Account   string `json:"account,omitempty"`
	HasSigner bool   `json:"hasSigner"`
	Ready     bool   `json:"ready"`
}

type CreatePropertyRequest struct {
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
	Location    string `json:"location,omitempty"`
	Price       string `json:"price,omitempty"`
	Currency    string `json:"currency,omitempty"` // ETH or MXN
}

type CreateContractRequest struct {
	PropertyID     uint64 `json:"property_id"`
	Tenant         string `json:"tenant"`
	MonthlyRentEth string `json:"monthly_rent_eth"`
	TotalMonths    uint32 `json:"total_months"`
}

type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

type TxResponse struct {
	TxHash string `json:"txHash,omitempty"`
	// Link points at the transaction on the configured block explorer.
	Link    string `json:"link,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type PriceResponse struct {
	Value     string `json:"value"`
	Currency  string `json:"currency"`
	FetchedAt string `json:"fetchedAt"`
	Stale     bool   `json:"stale"`
}

type contextKey string
