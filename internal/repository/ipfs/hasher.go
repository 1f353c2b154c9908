package ipfs

import (
	"bytes"
	"context"

	"github.com/ipfs/go-blockservice"
	ds "github.com/ipfs/go-datastore"
	ds_sync "github.com/ipfs/go-datastore/sync"
	bs "github.com/ipfs/go-ipfs-blockstore"
	chunker "github.com/ipfs/go-ipfs-chunker"
	"github.com/ipfs/go-merkledag"
	importer "github.com/ipfs/go-unixfs/importer"
	log "github.com/sirupsen/logrus"
)

// Hasher computes the identifier `ipfs add` would assign to some bytes (CIDv0, default chunker,
// balanced unixfs layout) without contacting a node. Nothing is pinned.
type Hasher struct{}

func NewHasher() *Hasher {
	return &Hasher{}
}

// Add builds the unixfs DAG for data in a throwaway in-memory blockstore and returns its root.
func (h *Hasher) Add(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	blocks := bs.NewBlockstore(ds_sync.MutexWrap(ds.NewMapDatastore()))
	bserv := blockservice.New(blocks, nil)
	dserv := merkledag.NewDAGService(bserv)

	root, err := importer.BuildDagFromReader(dserv, chunker.DefaultSplitter(bytes.NewReader(data)))
	if err != nil {
		return "", err
	}

	hash := root.Cid().String()
	log.Debugf("Computed %s locally for %d bytes", hash, len(data))
	return hash, nil
}
