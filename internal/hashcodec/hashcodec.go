// Package hashcodec converts between base-58 multihash identifiers and the fixed-width fields a
// file registry contract stores.
//
// A multihash is [function code][digest size][digest]. The contract keeps the digest in one
// bytes32 slot and packs the two prefix bytes, together with the file type, into the low end of a
// second bytes32 metadata word. Encode splits an identifier into those fields; Decode puts an
// identifier back together from what the contract returns.
package hashcodec

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	mh "github.com/multiformats/go-multihash"

	"github.com/zzenonn/fyles/internal/domain"
	apperrors "github.com/zzenonn/fyles/internal/errors"
)

const hexPrefix = "0x"

// Encode splits a base-58 multihash into its on-chain fields.
//
// The declared digest size is not checked against the digest length; use Validate for that.
func Encode(multihash string) (domain.EncodedHash, error) {
	raw, err := decodeBase58(multihash)
	if err != nil {
		return domain.EncodedHash{}, err
	}

	h := hex.EncodeToString(raw)
	return domain.EncodedHash{
		FullHex:      hexPrefix + h,
		HashFunction: hexPrefix + h[0:2],
		HashSize:     hexPrefix + h[2:4],
		FileHash:     hexPrefix + h[4:],
	}, nil
}

// Validate reports ErrSizeMismatch when the declared digest size of multihash differs from the
// number of digest bytes that follow it.
func Validate(multihash string) error {
	raw, err := decodeBase58(multihash)
	if err != nil {
		return err
	}
	if _, err := mh.Decode(raw); err != nil {
		return apperrors.Wrap(apperrors.ErrSizeMismatch, err)
	}
	return nil
}

// Describe names a hash function code such as "0x12". Unknown codes return "unknown".
func Describe(hashFunction string) string {
	code, err := strconv.ParseUint(trimHexPrefix(hashFunction), 16, 64)
	if err != nil {
		return "unknown"
	}
	if name, ok := mh.Codes[code]; ok {
		return name
	}
	return "unknown"
}

// Decode rebuilds the display entry for one registry record from the digest word and the packed
// metadata word the contract returns.
func Decode(fileHash, metadata, gatewayURL string) (domain.Entry, error) {
	fn, size, fileType, err := Unpack(metadata)
	if err != nil {
		return domain.Entry{}, err
	}

	digest, err := hex.DecodeString(trimHexPrefix(fileHash))
	if err != nil {
		return domain.Entry{}, apperrors.Wrap(apperrors.ErrMalformedRecord, fmt.Errorf("file hash %q: %w", fileHash, err))
	}

	raw := make([]byte, 0, 2+len(digest))
	raw = append(raw, fn, size)
	raw = append(raw, digest...)

	hash := base58.Encode(raw)
	return domain.Entry{
		Hash: hash,
		Type: fileType,
		URL:  URL(gatewayURL, hash),
	}, nil
}

// URL joins a gateway base and a multihash.
func URL(gatewayURL, hash string) string {
	return strings.TrimSuffix(gatewayURL, "/") + "/" + hash
}

func decodeBase58(multihash string) ([]byte, error) {
	if multihash == "" {
		return nil, apperrors.Wrap(apperrors.ErrMalformedIdentifier, fmt.Errorf("empty identifier"))
	}
	raw, err := base58.Decode(multihash)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedIdentifier, err)
	}
	if len(raw) < 2 {
		return nil, apperrors.Wrap(apperrors.ErrMalformedIdentifier, fmt.Errorf("%d byte identifier has no multihash prefix", len(raw)))
	}
	return raw, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
