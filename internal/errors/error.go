package errors

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("no wallet provider available")
	ErrStorageUnavailable  = errors.New("storage network add failed")
	ErrLedgerCallFailed    = errors.New("ledger call failed")
	ErrMalformedIdentifier = errors.New("malformed multihash identifier")
	ErrSizeMismatch        = errors.New("declared hash size does not match digest length")
	ErrMalformedRecord     = errors.New("malformed ledger record")
	ErrDigestTooLong       = errors.New("digest does not fit in a 32 byte word")
	ErrEmptyFile           = errors.New("cannot upload empty file")
	ErrNoFileCaptured      = errors.New("no file captured for submission")
	ErrUnknownFileType     = errors.New("unknown file type")
)

// ConfigNotSetError reports a configuration key that a selected backend requires.
func ConfigNotSetError(config string) error {
	return fmt.Errorf("the %s setting must be set", config)
}

// Wrap tags cause with one of the sentinel errors above so callers can match it with errors.Is.
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
