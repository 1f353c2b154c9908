package service

import (
	"bytes"
	"context"
	"io"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zzenonn/fyles/internal/domain"
	apperrors "github.com/zzenonn/fyles/internal/errors"
	"github.com/zzenonn/fyles/internal/hashcodec"
	"github.com/zzenonn/fyles/internal/registry"
)

// ContentStore adds bytes to the content addressed storage network and returns their multihash.
type ContentStore interface {
	Add(ctx context.Context, data []byte) (string, error)
}

// Ledger is the remote procedure surface of the file registry contract.
type Ledger interface {
	AddFile(ctx context.Context, rec domain.FileRecord, from string) (string, error)
	GetAllFileHashes(ctx context.Context, from string) ([]string, error)
	GetAllFileMetadata(ctx context.Context, from string) ([]string, error)
}

// AccountProvider supplies the account ledger calls are made from.
type AccountProvider interface {
	Account(ctx context.Context) (string, error)
}

// ObjectRepository receives a mirror copy of uploaded bytes.
type ObjectRepository interface {
	Upload(ctx context.Context, key string, r io.Reader, quiet bool) (string, error)
}

// Options tune a FileService.
type Options struct {
	GatewayURL      string
	StrictMultihash bool
	Mirrors         []ObjectRepository
	Quiet           bool
}

type FileService struct {
	store  ContentStore
	ledger Ledger
	wallet AccountProvider
	opts   Options
}

// NewFileService creates a new FileService instance
func NewFileService(store ContentStore, ledger Ledger, wallet AccountProvider, opts Options) *FileService {
	return &FileService{
		store:  store,
		ledger: ledger,
		wallet: wallet,
		opts:   opts,
	}
}

// NewSession resolves the current account and returns an idle session for it.
func (s *FileService) NewSession(ctx context.Context) (*Session, error) {
	account, err := s.wallet.Account(ctx)
	if err != nil {
		log.WithError(err).Error("Error finding wallet provider")
		return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, err)
	}
	log.Debugf("Using account %s", account)
	return NewSessionFor(account), nil
}

// Capture buffers the file to submit. It may be called in any state and starts a new upload.
func (s *FileService) Capture(session *Session, r io.Reader, fileType domain.FileType) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return apperrors.ErrEmptyFile
	}

	session.buffer = data
	session.fileType = fileType
	s.transition(session, StateFileCaptured)
	return nil
}

// Submit adds the captured file to the storage network, registers it on the ledger and refreshes
// the session's file list. Steps run in order and none is retried. On failure the session stays
// in StateSubmitting with the file still captured, so calling Submit again retries by hand.
func (s *FileService) Submit(ctx context.Context, session *Session) (domain.Upload, error) {
	if session.state != StateFileCaptured && session.state != StateSubmitting {
		return domain.Upload{}, apperrors.ErrNoFileCaptured
	}
	s.transition(session, StateSubmitting)

	hash, err := s.store.Add(ctx, session.buffer)
	if err != nil {
		return domain.Upload{}, apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	log.WithField("multihash", hash).Info("Added file to storage network")

	if err := s.mirror(ctx, hash, session.buffer); err != nil {
		return domain.Upload{}, apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}

	enc, err := hashcodec.Encode(hash)
	if err != nil {
		return domain.Upload{}, err
	}
	if s.opts.StrictMultihash {
		if err := hashcodec.Validate(hash); err != nil {
			return domain.Upload{}, err
		}
	}

	rec := domain.NewFileRecord(enc, session.fileType)
	tx, err := s.ledger.AddFile(ctx, rec, session.Account)
	if err != nil {
		return domain.Upload{}, apperrors.Wrap(apperrors.ErrLedgerCallFailed, err)
	}
	log.WithFields(log.Fields{
		"multihash":   hash,
		"transaction": tx,
		"file_type":   session.fileType,
	}).Info("Registered file on ledger")

	upload := domain.Upload{
		Multihash:   hash,
		Encoded:     enc,
		FileType:    session.fileType,
		Transaction: tx,
	}
	session.upload = &upload
	session.buffer = nil
	s.transition(session, StateRegistered)

	if _, err := s.Refresh(ctx, session); err != nil {
		return upload, err
	}
	return upload, nil
}

// Refresh reads the registry for the session account and replaces the session's file list.
func (s *FileService) Refresh(ctx context.Context, session *Session) ([]domain.Entry, error) {
	var hashes, metadata []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hashes, err = s.ledger.GetAllFileHashes(gctx, session.Account)
		return apperrors.Wrap(apperrors.ErrLedgerCallFailed, err)
	})
	g.Go(func() error {
		var err error
		metadata, err = s.ledger.GetAllFileMetadata(gctx, session.Account)
		return apperrors.Wrap(apperrors.ErrLedgerCallFailed, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files, err := registry.Sync(hashes, metadata, s.opts.GatewayURL)
	if err != nil {
		return nil, err
	}
	session.files = files
	log.Debugf("Loaded %d registered files", len(files))
	return files, nil
}

// mirror copies data to every configured object repository under ipfs/<multihash>.
func (s *FileService) mirror(ctx context.Context, hash string, data []byte) error {
	if len(s.opts.Mirrors) == 0 {
		return nil
	}

	key := "ipfs/" + hash
	g, gctx := errgroup.WithContext(ctx)
	for _, repo := range s.opts.Mirrors {
		repo := repo
		g.Go(func() error {
			location, err := repo.Upload(gctx, key, bytes.NewReader(data), s.opts.Quiet)
			if err != nil {
				return err
			}
			log.Debugf("Mirrored %s to %s", hash, location)
			return nil
		})
	}
	return g.Wait()
}

func (s *FileService) transition(session *Session, next State) {
	log.Debugf("Session %s -> %s", session.state, next)
	session.state = next
}
