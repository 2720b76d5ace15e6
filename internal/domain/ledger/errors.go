package ledger

import (
	"errors"
	"fmt"
)

// ErrIntegrityViolation means the chain no longer matches its hashes.
var ErrIntegrityViolation = errors.New("ledger integrity violation")

// IntegrityError names the first block that failed verification.
type IntegrityError struct {
	Index  int64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation at block %d: %s", e.Index, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityViolation }
