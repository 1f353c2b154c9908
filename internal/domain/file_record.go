package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/zzenonn/fyles/internal/errors"
)

// FileType is the file classification stored on the ledger. Values are part of the
// contract ABI and must not be renumbered.
type FileType uint8

const (
	FileTypeOther    FileType = 0
	FileTypeImage    FileType = 1
	FileTypeVideo    FileType = 2
	FileTypeDocument FileType = 3
)

// String returns the display name. Values outside the enumeration are shown as Other.
func (t FileType) String() string {
	switch t {
	case FileTypeImage:
		return "Image"
	case FileTypeVideo:
		return "Video"
	case FileTypeDocument:
		return "Document"
	default:
		return "Other"
	}
}

// ParseFileType accepts a name ("image") or the numeric wire value ("1").
func ParseFileType(s string) (FileType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "other", "0":
		return FileTypeOther, nil
	case "image", "1":
		return FileTypeImage, nil
	case "video", "2":
		return FileTypeVideo, nil
	case "document", "doc", "3":
		return FileTypeDocument, nil
	}
	return FileTypeOther, fmt.Errorf("%w: %q", apperrors.ErrUnknownFileType, s)
}

// EncodedHash - the on-chain split of a multihash. All fields are lowercase hex with a 0x prefix.
type EncodedHash struct {
	FullHex      string `json:"full_hex"`
	HashFunction string `json:"hash_function"`
	HashSize     string `json:"hash_size"`
	FileHash     string `json:"file_hash"`
}

// FileRecord - what a ledger backend persists for one registered file.
type FileRecord struct {
	FileHash     string   `json:"file_hash" dynamodbav:"file_hash"`
	HashFunction string   `json:"hash_function" dynamodbav:"hash_function"`
	HashSize     string   `json:"hash_size" dynamodbav:"hash_size"`
	FileType     FileType `json:"file_type" dynamodbav:"file_type"`
}

// NewFileRecord pairs encoder output with the chosen file type.
func NewFileRecord(enc EncodedHash, fileType FileType) FileRecord {
	return FileRecord{
		FileHash:     enc.FileHash,
		HashFunction: enc.HashFunction,
		HashSize:     enc.HashSize,
		FileType:     fileType,
	}
}

// Entry - a display-ready registry entry. Rebuilt on every refresh.
type Entry struct {
	Hash string   `json:"hash"`
	Type FileType `json:"type"`
	URL  string   `json:"url"`
}

// Upload - result of a successful submission.
type Upload struct {
	Multihash   string      `json:"multihash"`
	Encoded     EncodedHash `json:"encoded"`
	FileType    FileType    `json:"file_type"`
	Transaction string      `json:"transaction"`
}
