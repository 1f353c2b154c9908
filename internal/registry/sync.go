// Package registry turns the two parallel arrays a registry contract returns into display entries.
package registry

import (
	"fmt"

	"github.com/zzenonn/fyles/internal/domain"
	apperrors "github.com/zzenonn/fyles/internal/errors"
	"github.com/zzenonn/fyles/internal/hashcodec"
)

// Sync decodes hashes[i] with metadata[i] for every i and returns the entries most recent first.
// The contract appends, so the highest index is the latest registration.
//
// The arrays must be index aligned; that is not checked. A metadata array shorter than hashes is
// reported as ErrMalformedRecord.
func Sync(hashes, metadata []string, gatewayURL string) ([]domain.Entry, error) {
	if len(metadata) < len(hashes) {
		return nil, apperrors.Wrap(apperrors.ErrMalformedRecord,
			fmt.Errorf("%d file hashes but %d metadata words", len(hashes), len(metadata)))
	}

	entries := make([]domain.Entry, 0, len(hashes))
	for i := len(hashes) - 1; i >= 0; i-- {
		entry, err := hashcodec.Decode(hashes[i], metadata[i], gatewayURL)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
