package rental

import "fmt"

// RevertError is a transaction rejected by the contract. Reason carries the
// human-readable revert string when the node supplies one.
type RevertError struct {
	Op     string
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: transaction reverted", e.Op)
	}
	return fmt.Sprintf("%s: transaction reverted: %s", e.Op, e.Reason)
}
