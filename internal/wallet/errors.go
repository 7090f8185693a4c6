package wallet

import "errors"

var (
	// ErrExtensionMissing means no wallet provider is available at all.
	ErrExtensionMissing = errors.New("wallet provider is not available")

	// ErrUserRejected means the user declined the connection or signing prompt.
	ErrUserRejected = errors.New("user rejected the wallet request")

	// ErrRequestPending means a connection prompt is already open. Retrying
	// compounds the pending request, so callers must surface this distinctly
	// and never retry automatically.
	ErrRequestPending = errors.New("a wallet request is already pending")

	// ErrNoAccounts means the provider authorized zero accounts.
	ErrNoAccounts = errors.New("wallet provider returned no accounts")

	// ErrSessionNotReady guards every ledger call made before a session is
	// established.
	ErrSessionNotReady = errors.New("wallet session not ready")
)
