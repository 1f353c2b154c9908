package registry

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/mr-tron/base58"

	"github.com/zzenonn/fyles/internal/domain"
	apperrors "github.com/zzenonn/fyles/internal/errors"
	"github.com/zzenonn/fyles/internal/hashcodec"
)

const gateway = "http://gateway.ipfs.io/ipfs"

// ledgerArrays builds n index aligned (hash, metadata) pairs the way a registry contract returns them.
func ledgerArrays(t *testing.T, n int) (ids, hashes, metadata []string) {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(n)))
	for i := 0; i < n; i++ {
		digest := make([]byte, 32)
		rng.Read(digest)
		id := base58.Encode(append([]byte{0x12, 0x20}, digest...))

		enc, err := hashcodec.Encode(id)
		if err != nil {
			t.Fatalf("Encode(%s) failed: %v", id, err)
		}
		ids = append(ids, id)
		hashes = append(hashes, enc.FileHash)
		metadata = append(metadata, hashcodec.PackMetadata(0x12, 0x20, domain.FileType(i%4)))
	}
	return ids, hashes, metadata
}

func TestSync_TwoEntries(t *testing.T) {
	_, hashes, metadata := ledgerArrays(t, 2)

	got, err := Sync(hashes, metadata, gateway)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	want0, _ := hashcodec.Decode(hashes[1], metadata[1], gateway)
	want1, _ := hashcodec.Decode(hashes[0], metadata[0], gateway)
	if len(got) != 2 || got[0] != want0 || got[1] != want1 {
		t.Errorf("Sync() = %+v, want [%+v %+v]", got, want0, want1)
	}
}

func TestSync_Ordering(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 50} {
		ids, hashes, metadata := ledgerArrays(t, n)

		got, err := Sync(hashes, metadata, gateway)
		if err != nil {
			t.Fatalf("Sync(n=%d) error = %v", n, err)
		}
		if len(got) != n {
			t.Fatalf("Sync(n=%d) returned %d entries", n, len(got))
		}
		for i, entry := range got {
			src := n - 1 - i
			if entry.Hash != ids[src] {
				t.Errorf("n=%d output[%d] = %s, want input[%d] %s", n, i, entry.Hash, src, ids[src])
			}
			if entry.Type != domain.FileType(src%4) {
				t.Errorf("n=%d output[%d] type = %v, want %v", n, i, entry.Type, domain.FileType(src%4))
			}
			if !strings.HasSuffix(entry.URL, "/"+ids[src]) {
				t.Errorf("n=%d output[%d] url = %s", n, i, entry.URL)
			}
		}
	}
}

func TestSync_Idempotent(t *testing.T) {
	_, hashes, metadata := ledgerArrays(t, 10)

	first, err := Sync(hashes, metadata, gateway)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	second, err := Sync(hashes, metadata, gateway)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("entry %d differs between calls: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSync_Errors(t *testing.T) {
	_, hashes, metadata := ledgerArrays(t, 3)

	if _, err := Sync(hashes, metadata[:2], gateway); !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Errorf("short metadata: error = %v, want ErrMalformedRecord", err)
	}

	metadata[1] = "0x1220"
	if _, err := Sync(hashes, metadata, gateway); !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Errorf("bad word: error = %v, want ErrMalformedRecord", err)
	}
}
