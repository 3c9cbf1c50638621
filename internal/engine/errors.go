package engine

import "errors"

// Fatal invariant violations, returned as Go errors by orderTracker's
// fill and changeQty. The engine logs them at error level and abandons
// the fill in progress (or rejects the replace in progress); Add,
// Cancel and Replace do not return them to the caller.
var (
	ErrOverfill          = errors.New("engine: fill exceeds open quantity")
	ErrQuantityUnderflow = errors.New("engine: quantity change drives open qty negative")
)
