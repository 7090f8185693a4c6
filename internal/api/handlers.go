package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/securerent/securerent-client/internal/oracle"
	"github.com/securerent/securerent-client/internal/rental"
	"github.com/securerent/securerent-client/internal/rental/reconciler"
	"github.com/securerent/securerent-client/internal/wallet"
)

func NewAPI(session *wallet.Manager, rec *reconciler.Reconciler, priceCache *oracle.Cache, httpMode bool) *API {
	return &API{
		Session:    session,
		Reconciler: rec,
		Oracle:     priceCache,
		HttpMode:   httpMode,
		inFlight:   make(map[string]bool),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeActionError maps the error taxonomy onto HTTP statuses: environment
// and session errors are 503, user-declined 409/412, reverts 422 with the
// ledger's reason when available.
func writeActionError(w http.ResponseWriter, err error) {
	var revert *rental.RevertError

	switch {
	case errors.Is(err, wallet.ErrSessionNotReady),
		errors.Is(err, wallet.ErrExtensionMissing):
		writeJSON(w, http.StatusServiceUnavailable, TxResponse{Status: "failed", Message: err.Error()})
	case errors.Is(err, wallet.ErrRequestPending):
		writeJSON(w, http.StatusConflict, TxResponse{Status: "pending", Message: err.Error()})
	case errors.Is(err, wallet.ErrUserRejected):
		writeJSON(w, http.StatusPreconditionFailed, TxResponse{Status: "rejected", Message: err.Error()})
	case errors.As(err, &revert):
		writeJSON(w, http.StatusUnprocessableEntity, TxResponse{Status: "failed", Message: revert.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, TxResponse{Status: "failed", Message: err.Error()})
	}
}

// ExplorerTxURL builds the block-explorer page for a transaction, or an empty
// string when no explorer is configured.
func ExplorerTxURL(txHash common.Hash) string {
	base := viper.GetString("etherscan_base_url")
	if base == "" {
		return ""
	}
	return base + "/tx/" + txHash.Hex()
}

// beginAction reserves a logical write action, refusing a duplicate while one
// is still pending. The release func must be called once the action settles.
func (a *API) beginAction(key string) (release func(), ok bool) {
	a.inFlightMu.Lock()
	defer a.inFlightMu.Unlock()

	if a.inFlight[key] {
		return nil, false
	}
	a.inFlight[key] = true
	return func() {
		a.inFlightMu.Lock()
		delete(a.inFlight, key)
		a.inFlightMu.Unlock()
	}, true
}

func (a *API) AuthHandler(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	configured := viper.GetString("client_api_key")
	if configured == "" || req.APIKey != configured {
		http.Error(w, "Unauthorized: invalid API key", http.StatusUnauthorized)
		return
	}

	token, err := GenerateJWT("securerent-client")
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (a *API) SessionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse(a.Session.Session()))
}

func sessionResponse(s wallet.Session) SessionResponse {
	resp := SessionResponse{HasSigner: s.HasSigner, Ready: s.Ready}
	if s.Account != nil {
		resp.Account = s.Account.Hex()
	}
	return resp
}

func (a *API) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := a.Session.Connect(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(a.Session.Session()))
}

func (a *API) DisconnectHandler(w http.ResponseWriter, _ *http.Request) {
	a.Session.Disconnect()
	writeJSON(w, http.StatusOK, sessionResponse(a.Session.Session()))
}

func (a *API) PropertiesHandler(w http.ResponseWriter, r *http.Request) {
	viewer, _ := a.Session.Account()

	properties, err := a.Reconciler.ListProperties(r.Context(), viewer)
	if err != nil {
		http.Error(w, "Failed to load properties: "+err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, properties)
}

func (a *API) ContractsHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := a.Session.Account()
	if !ok {
		http.Error(w, wallet.ErrSessionNotReady.Error(), http.StatusServiceUnavailable)
		return
	}

	role := reconciler.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = reconciler.RoleTenant
	}

	view, err := a.Reconciler.ListContractsForRole(r.Context(), account, role)
	if err != nil {
		var unknownRole *reconciler.UnknownRoleError
		if errors.As(err, &unknownRole) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to load contracts: "+err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (a *API) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := a.Session.Account()
	if !ok {
		http.Error(w, wallet.ErrSessionNotReady.Error(), http.StatusServiceUnavailable)
		return
	}

	feed, err := a.Reconciler.DeriveNotifications(r.Context(), account)
	if err != nil {
		http.Error(w, "Failed to derive notifications: "+err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, feed)
}

func (a *API) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := a.Session.Account()
	if !ok {
		http.Error(w, wallet.ErrSessionNotReady.Error(), http.StatusServiceUnavailable)
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := a.Reconciler.MarkRead(account, req.IDs); err != nil {
		http.Error(w, "Failed to mark notifications read: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) PriceHandler(w http.ResponseWriter, _ *http.Request) {
	rate, ok := a.Oracle.Rate()
	if !ok {
		http.Error(w, "Exchange rate not available yet", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, PriceResponse{
		Value:     rate.Value.String(),
		Currency:  rate.Currency,
		FetchedAt: rate.FetchedAt.Format(time.RFC3339),
		Stale:     rate.Stale,
	})
}

func (a *API) CreatePropertyHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Description == "" {
		http.Error(w, "Description is required", http.StatusBadRequest)
		return
	}

	desc := rental.Description{
		Text:     req.Description,
		ImageURL: req.ImageURL,
		Location: req.Location,
	}
	if req.Price != "" {
		value, err := decimal.NewFromString(req.Price)
		if err != nil {
			http.Error(w, "Invalid price value", http.StatusBadRequest)
			return
		}
		currency := rental.CurrencyETH
		if req.Currency == string(rental.CurrencyMXN) {
			currency = rental.CurrencyMXN
		}
		desc.Price = &rental.PriceTag{Value: value, Currency: currency}
	}

	release, ok := a.beginAction("create-property")
	if !ok {
		http.Error(w, "A property creation is already pending", http.StatusConflict)
		return
	}
	defer release()

	contract, err := a.Session.Contract()
	if err != nil {
		writeActionError(w, err)
		return
	}

	txHash, err := contract.CreateProperty(r.Context(), rental.EncodeDescription(desc))
	if err != nil {
		writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TxResponse{TxHash: txHash.Hex(), Link: ExplorerTxURL(txHash), Status: "success"})
}

func (a *API) CreateContractHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Validation errors block submission locally.
	if !common.IsHexAddress(req.Tenant) {
		http.Error(w, "Tenant is not a valid address", http.StatusBadRequest)
		return
	}
	if req.PropertyID == 0 || req.MonthlyRentEth == "" || req.TotalMonths == 0 {
		http.Error(w, "property_id, monthly_rent_eth and total_months are required", http.StatusBadRequest)
		return
	}

	rentEth, err := decimal.NewFromString(req.MonthlyRentEth)
	if err != nil || !rentEth.IsPositive() {
		http.Error(w, "Invalid monthly rent", http.StatusBadRequest)
		return
	}

	release, ok := a.beginAction("create-contract")
	if !ok {
		http.Error(w, "A contract creation is already pending", http.StatusConflict)
		return
	}
	defer release()

	contract, err := a.Session.Contract()
	if err != nil {
		writeActionError(w, err)
		return
	}

	txHash, err := contract.CreateRentContract(r.Context(), req.PropertyID,
		common.HexToAddress(req.Tenant), oracle.EthToWei(rentEth), req.TotalMonths)
	if err != nil {
		writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TxResponse{TxHash: txHash.Hex(), Link: ExplorerTxURL(txHash), Status: "success"})
}

func (a *API) RequestRentHandler(w http.ResponseWriter, r *http.Request) {
	a.contractAction(w, r, "request-rent", func(c rental.Contract, id uint64) (common.Hash, error) {
		return c.RequestRent(r.Context(), id)
	})
}

func (a *API) SignContractHandler(w http.ResponseWriter, r *http.Request) {
	a.contractAction(w, r, "sign", func(c rental.Contract, id uint64) (common.Hash, error) {
		return c.SignRentContract(r.Context(), id)
	})
}

func (a *API) PayRentHandler(w http.ResponseWriter, r *http.Request) {
	a.contractAction(w, r, "pay", func(c rental.Contract, id uint64) (common.Hash, error) {
		// The exact monthly rent must accompany the payment.
		record, err := c.GetRentContract(r.Context(), id)
		if err != nil {
			return common.Hash{}, err
		}
		return c.PayMonthlyRent(r.Context(), id, record.MonthlyRent)
	})
}

func (a *API) CancelContractHandler(w http.ResponseWriter, r *http.Request) {
	a.contractAction(w, r, "cancel", func(c rental.Contract, id uint64) (common.Hash, error) {
		return c.CancelContract(r.Context(), id)
	})
}

func (a *API) contractAction(w http.ResponseWriter, r *http.Request, action string,
	fn func(rental.Contract, uint64) (common.Hash, error)) {

	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}

	release, ok := a.beginAction(action + "-" + strconv.FormatUint(id, 10))
	if !ok {
		http.Error(w, "This action is already pending", http.StatusConflict)
		return
	}
	defer release()

	contract, err := a.Session.Contract()
	if err != nil {
		writeActionError(w, err)
		return
	}

	txHash, err := fn(contract, id)
	if err != nil {
		writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TxResponse{TxHash: txHash.Hex(), Link: ExplorerTxURL(txHash), Status: "success"})
}
