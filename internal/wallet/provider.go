package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Provider abstracts the external wallet that authorizes accounts: a browser
// extension bridge, a local keystore, or a test double. Implementations map
// their native failures onto the sentinel errors in this package.
type Provider interface {
	// RequestAccounts asks the wallet for account access and may prompt the
	// user. Returns ErrUserRejected or ErrRequestPending on declined or
	// already-pending prompts.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// Accounts returns the already-authorized accounts without prompting.
	// An empty slice means no silent access.
	Accounts(ctx context.Context) ([]common.Address, error)

	// SubscribeAccountsChanged registers a callback fired whenever the
	// authorized account list changes. An empty list means access was revoked.
	SubscribeAccountsChanged(fn func(accounts []common.Address))

	// SubscribeChainChanged registers a callback fired when the wallet
	// switches networks. Any bound contract handle is invalid afterwards.
	SubscribeChainChanged(fn func())
}
