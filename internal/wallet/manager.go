package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	clientstatedb "github.com/securerent/securerent-client/internal/database"
	"github.com/securerent/securerent-client/internal/logger"
	"github.com/securerent/securerent-client/internal/rental"
)

// Session is a read-only snapshot of the wallet connection state.
type Session struct {
	Account   *common.Address
	HasSigner bool
	Ready     bool
}

// ContractBinder builds a contract handle bound to an account. withSigner
// selects a write-capable handle; a handle is only valid for the network it
// was built against.
type ContractBinder func(account common.Address, withSigner bool) (rental.Contract, error)

// Manager owns the wallet session lifecycle: restore on startup, explicit
// connect/disconnect, and reaction to account or network changes pushed by
// the provider. The session is a single-writer resource; every state change
// holds the mutex for its whole duration so no partial state is observable.
type Manager struct {
	mu       sync.Mutex
	provider Provider
	bind     ContractBinder

	account  *common.Address
	contract rental.Contract
	signer   bool
}

func NewManager(provider Provider, bind ContractBinder) *Manager {
	m := &Manager{provider: provider, bind: bind}

	if provider != nil {
		provider.SubscribeAccountsChanged(m.handleAccountsChanged)
		provider.SubscribeChainChanged(m.handleChainChanged)
	}

	return m
}

// Restore attempts a silent re-bind from the persisted account. A missing
// provider, revoked access, or any bind failure leaves the session empty and
// is not an error: restore never prompts and never blocks startup.
func (m *Manager) Restore(ctx context.Context) {
	saved, err := clientstatedb.GetActiveAccount()
	if err != nil {
		logger.Error("restore: reading saved account:", err)
		return
	}
	if saved == "" || m.provider == nil {
		return
	}

	account := common.HexToAddress(saved)

	authorized, err := m.provider.Accounts(ctx)
	if err != nil {
		logger.Info("restore: silent account access unavailable:", err)
		return
	}
	if !containsAccount(authorized, account) {
		logger.Info("restore: saved account no longer authorized:", saved)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bindLocked(account); err != nil {
		logger.Error("restore: binding contract handle:", err)
	}
}

// Connect requests account access, which may prompt the user. On success the
// first authorized account is persisted and a signer-bound contract handle is
// constructed. ErrRequestPending must not be retried by callers.
func (m *Manager) Connect(ctx context.Context) (common.Address, error) {
	if m.provider == nil {
		return common.Address{}, ErrExtensionMissing
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}

	account := accounts[0]

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.bindLocked(account); err != nil {
		return common.Address{}, err
	}
	if err := clientstatedb.SaveActiveAccount(account.Hex()); err != nil {
		logger.Error("connect: persisting account:", err)
	}

	return account, nil
}

// Disconnect clears the in-memory session and the persisted account. Safe to
// call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.account = nil
	m.contract = nil
	m.signer = false
	m.mu.Unlock()

	if err := clientstatedb.ClearActiveAccount(); err != nil {
		logger.Error("disconnect: clearing persisted account:", err)
	}
}

// Session returns a consistent snapshot of the connection state.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Session{HasSigner: m.signer, Ready: m.contract != nil}
	if m.account != nil {
		acct := *m.account
		s.Account = &acct
	}
	return s
}

// Contract returns the bound contract handle, failing fast when the session
// is not ready rather than handing out a nil binding.
func (m *Manager) Contract() (rental.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.contract == nil {
		return nil, ErrSessionNotReady
	}
	return m.contract, nil
}

// Account returns the active account, if any.
func (m *Manager) Account() (common.Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.account == nil {
		return common.Address{}, false
	}
	return *m.account, true
}

func (m *Manager) bindLocked(account common.Address) error {
	contract, err := m.bind(account, true)
	if err != nil {
		return fmt.Errorf("binding contract for %s: %w", account.Hex(), err)
	}

	acct := account
	m.account = &acct
	m.contract = contract
	m.signer = true
	return nil
}

// handleAccountsChanged re-binds to the new first account, or collapses the
// session to disconnected when the wallet revoked all access.
func (m *Manager) handleAccountsChanged(accounts []common.Address) {
	if len(accounts) == 0 {
		logger.Info("wallet revoked account access, disconnecting")
		m.Disconnect()
		return
	}

	account := accounts[0]

	m.mu.Lock()
	if m.account != nil && *m.account == account {
		m.mu.Unlock()
		return
	}
	err := m.bindLocked(account)
	m.mu.Unlock()

	if err != nil {
		logger.Error("accounts-changed: rebinding:", err)
		m.Disconnect()
		return
	}
	if err := clientstatedb.SaveActiveAccount(account.Hex()); err != nil {
		logger.Error("accounts-changed: persisting account:", err)
	}
}

// handleChainChanged tears the session down and restores it against the new
// network: a bound handle is network-specific and cannot be reused.
func (m *Manager) handleChainChanged() {
	logger.Info("wallet network changed, rebuilding session")

	m.mu.Lock()
	account := m.account
	m.account = nil
	m.contract = nil
	m.signer = false
	m.mu.Unlock()

	if account == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bindLocked(*account); err != nil {
		logger.Error("chain-changed: rebinding:", err)
	}
}

func containsAccount(list []common.Address, account common.Address) bool {
	for _, a := range list {
		if a == account {
			return true
		}
	}
	return false
}
