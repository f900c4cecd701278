package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant matches every *InvariantError via errors.Is.
	ErrInvariant = errors.New("ledger invariant violated")

	// ErrOutOfOrder is returned by Apply for a trade that sorts before the
	// previously applied one.
	ErrOutOfOrder = errors.New("trade out of (time, id) order")
)

// InvariantError means the fold produced or was fed an impossible state. It
// always aborts the computation.
type InvariantError struct {
	Contract string
	TradeID  int64
	Detail   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s (trade %d): %s", ErrInvariant, e.Contract, e.TradeID, e.Detail)
}

func (e *InvariantError) Is(target error) bool { return target == ErrInvariant }
