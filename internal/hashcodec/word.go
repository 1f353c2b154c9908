package hashcodec

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/zzenonn/fyles/internal/domain"
	apperrors "github.com/zzenonn/fyles/internal/errors"
)

// WordSize is the width of a contract storage word.
const WordSize = 32

// Byte positions inside the metadata word, counted from its start. They correspond to hex
// characters 60-62, 62-64 and 64-66 of the 0x-prefixed word.
const (
	fileTypeByte     = WordSize - 3
	hashSizeByte     = WordSize - 2
	hashFunctionByte = WordSize - 1
)

// PackMetadata builds the 0x-prefixed metadata word holding the hash function code, the digest
// size and the file type. Unpack is its inverse.
func PackMetadata(hashFunction, hashSize byte, fileType domain.FileType) string {
	var word [WordSize]byte
	word[fileTypeByte] = byte(fileType)
	word[hashSizeByte] = hashSize
	word[hashFunctionByte] = hashFunction
	return hexPrefix + hex.EncodeToString(word[:])
}

// PackRecord is PackMetadata over the hex fields of a record.
func PackRecord(rec domain.FileRecord) (string, error) {
	fn, err := ParseByte(rec.HashFunction)
	if err != nil {
		return "", err
	}
	size, err := ParseByte(rec.HashSize)
	if err != nil {
		return "", err
	}
	return PackMetadata(fn, size, rec.FileType), nil
}

// Unpack reads the hash function code, digest size and file type out of a metadata word.
// Bytes outside the three packed positions are ignored.
func Unpack(metadata string) (hashFunction, hashSize byte, fileType domain.FileType, err error) {
	word := trimHexPrefix(metadata)
	if len(word) != 2*WordSize {
		return 0, 0, 0, apperrors.Wrap(apperrors.ErrMalformedRecord, fmt.Errorf("metadata word %q is not %d bytes", metadata, WordSize))
	}

	fn, err := strconv.ParseUint(word[2*hashFunctionByte:2*hashFunctionByte+2], 16, 8)
	if err != nil {
		return 0, 0, 0, apperrors.Wrap(apperrors.ErrMalformedRecord, err)
	}
	size, err := strconv.ParseUint(word[2*hashSizeByte:2*hashSizeByte+2], 16, 8)
	if err != nil {
		return 0, 0, 0, apperrors.Wrap(apperrors.ErrMalformedRecord, err)
	}
	ft, err := strconv.ParseUint(word[2*fileTypeByte:2*fileTypeByte+2], 16, 8)
	if err != nil {
		return 0, 0, 0, apperrors.Wrap(apperrors.ErrMalformedRecord, err)
	}
	return byte(fn), byte(size), domain.FileType(ft), nil
}

// DigestWord left-aligns a hex digest in a storage word, zero padding on the right.
func DigestWord(fileHash string) ([WordSize]byte, error) {
	var word [WordSize]byte
	digest, err := hex.DecodeString(trimHexPrefix(fileHash))
	if err != nil {
		return word, apperrors.Wrap(apperrors.ErrMalformedIdentifier, fmt.Errorf("file hash %q: %w", fileHash, err))
	}
	if len(digest) > WordSize {
		return word, apperrors.Wrap(apperrors.ErrDigestTooLong, fmt.Errorf("%d bytes", len(digest)))
	}
	copy(word[:], digest)
	return word, nil
}

// ParseByte parses a one byte hex field such as "0x12".
func ParseByte(field string) (byte, error) {
	v, err := strconv.ParseUint(trimHexPrefix(field), 16, 8)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrMalformedRecord, fmt.Errorf("field %q: %w", field, err))
	}
	return byte(v), nil
}
