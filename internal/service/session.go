package service

import "github.com/zzenonn/fyles/internal/domain"

// State of a submission.
type State int

const (
	StateIdle State = iota
	StateFileCaptured
	StateSubmitting
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFileCaptured:
		return "file-captured"
	case StateSubmitting:
		return "submitting"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// Session holds everything one user interaction needs between calls: the account, the captured
// file, the last upload and the last registry listing. It is owned by a single goroutine.
type Session struct {
	Account string

	state    State
	buffer   []byte
	fileType domain.FileType
	upload   *domain.Upload
	files    []domain.Entry
}

// NewSessionFor returns an idle session for account.
func NewSessionFor(account string) *Session {
	return &Session{Account: account}
}

func (s *Session) State() State {
	return s.state
}

// Upload returns the result of the last successful submission.
func (s *Session) Upload() (domain.Upload, bool) {
	if s.upload == nil {
		return domain.Upload{}, false
	}
	return *s.upload, true
}

// Files returns the entries of the last refresh, most recent first.
func (s *Session) Files() []domain.Entry {
	return s.files
}
