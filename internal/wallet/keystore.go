package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"

	"github.com/securerent/securerent-client/internal/rental"
)

// KeystoreProvider backs the session with a local go-ethereum keystore
// directory instead of a browser extension. Accounts appear and disappear as
// key files are added or removed, which is surfaced through the
// accounts-changed subscription.
type KeystoreProvider struct {
	ks   *keystore.KeyStore
	done chan struct{}

	closeOnce sync.Once

	mu              sync.Mutex
	accountsChanged []func([]common.Address)
	chainChanged    []func()
}

var _ Provider = (*KeystoreProvider)(nil)

func NewKeystoreProvider(dir string) *KeystoreProvider {
	p := &KeystoreProvider{
		ks:   keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
		done: make(chan struct{}),
	}
	go p.watch()
	return p
}

// Close stops the keystore event watcher. Safe to call more than once.
func (p *KeystoreProvider) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// RequestAccounts lists the keystore accounts. A local keystore has no prompt
// to show, so request and silent access behave the same.
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return p.Accounts(ctx)
}

func (p *KeystoreProvider) Accounts(_ context.Context) ([]common.Address, error) {
	list := p.ks.Accounts()
	addresses := make([]common.Address, len(list))
	for i, acct := range list {
		addresses[i] = acct.Address
	}
	return addresses, nil
}

func (p *KeystoreProvider) SubscribeAccountsChanged(fn func([]common.Address)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accountsChanged = append(p.accountsChanged, fn)
}

func (p *KeystoreProvider) SubscribeChainChanged(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chainChanged = append(p.chainChanged, fn)
}

// NotifyChainChanged is called by the owner when the configured RPC endpoint
// or chain id changes, mirroring the extension's chain-changed push.
func (p *KeystoreProvider) NotifyChainChanged() {
	p.mu.Lock()
	callbacks := append([]func(){}, p.chainChanged...)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// TransactOpts returns a factory producing signer options for the given
// account, unlocking it with the supplied passphrase on each submission.
func (p *KeystoreProvider) TransactOpts(account common.Address, passphrase string, chainID *big.Int) rental.TransactOptsFactory {
	return func(_ context.Context) (*bind.TransactOpts, error) {
		acct := accounts.Account{Address: account}
		if err := p.ks.Unlock(acct, passphrase); err != nil {
			return nil, fmt.Errorf("unlocking %s: %w", account.Hex(), err)
		}
		return bind.NewKeyStoreTransactorWithChainID(p.ks, acct, chainID)
	}
}

func (p *KeystoreProvider) watch() {
	events := make(chan accounts.WalletEvent, 16)
	sub := p.ks.Subscribe(events)
	defer sub.Unsubscribe()

	for {
		select {
		case <-p.done:
			return
		case <-events:
			current := p.ks.Accounts()
			addresses := make([]common.Address, len(current))
			for i, acct := range current {
				addresses[i] = acct.Address
			}

			p.mu.Lock()
			callbacks := append([]func([]common.Address){}, p.accountsChanged...)
			p.mu.Unlock()

			for _, fn := range callbacks {
				fn(addresses)
			}
		}
	}
}
