package ipfs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	apperrors "github.com/zzenonn/fyles/internal/errors"
	"github.com/zzenonn/fyles/internal/hashcodec"
)

const v0 = "QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"

func TestClient_Add(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotFile string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")

		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		gotFile = string(data)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"Name":"file","Hash":"`+v0+`","Size":"20"}`+"\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", 0, true)
	hash, err := c.Add(context.Background(), []byte("hello fyles"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if hash != v0 {
		t.Errorf("Add() = %s, want %s", hash, v0)
	}
	if gotPath != "/api/v0/add" {
		t.Errorf("path = %s", gotPath)
	}
	if !strings.Contains(gotQuery, "pin=true") || !strings.Contains(gotQuery, "cid-version=0") {
		t.Errorf("query = %s", gotQuery)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotFile != "hello fyles" {
		t.Errorf("uploaded %q", gotFile)
	}
}

func TestClient_AddErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "repo locked", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, true)
	if _, err := c.Add(context.Background(), []byte("x")); err == nil {
		t.Fatal("Add() succeeded against a failing node")
	}
}

func TestClient_AddFailsWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"Name":"file","Hash":"`+v0+`","Size":"1"}`+"\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, true)
	if _, err := c.Add(context.Background(), []byte("x")); err == nil {
		t.Fatal("Add() succeeded after a failed attempt")
	}
	if calls != 1 {
		t.Errorf("node received %d add requests, want 1", calls)
	}
}

func TestLeveledLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	l := leveledLogger{logger: logger}

	l.Debug("performing request", "method", "POST", "url", "http://127.0.0.1:5001/api/v0/add")
	entry := hook.LastEntry()
	if entry.Level != log.DebugLevel {
		t.Errorf("level = %v, want debug", entry.Level)
	}
	if entry.Data["method"] != "POST" {
		t.Errorf("fields = %v", entry.Data)
	}

	l.Error("request failed", "error", "refused", "dangling")
	entry = hook.LastEntry()
	if entry.Level != log.ErrorLevel || entry.Message != "request failed" {
		t.Errorf("entry = %v %q", entry.Level, entry.Message)
	}
	if len(entry.Data) != 1 {
		t.Errorf("fields = %v, want only the complete pair", entry.Data)
	}

	logger.SetLevel(log.InfoLevel)
	hook.Reset()
	l.Debug("performing request")
	if len(hook.AllEntries()) != 0 {
		t.Error("debug message logged at info level")
	}
}

func TestClient_AddUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", 0, true)
	if _, err := c.Add(context.Background(), []byte("x")); err == nil {
		t.Fatal("Add() succeeded against a closed server")
	}
}

func TestClient_AddStreamedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Name":"chunk","Hash":"QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG","Size":"1"}`+"\n")
		io.WriteString(w, `{"Name":"file","Hash":"`+v0+`","Size":"2"}`+"\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, true)
	hash, err := c.Add(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if hash != v0 {
		t.Errorf("Add() = %s, want root %s", hash, v0)
	}
}

func TestNormalizeCID(t *testing.T) {
	v0cid, err := cid.Decode(v0)
	if err != nil {
		t.Fatalf("cid.Decode() error = %v", err)
	}
	v1DagPB := cid.NewCidV1(cid.DagProtobuf, v0cid.Hash()).String()
	v1Raw := cid.NewCidV1(cid.Raw, v0cid.Hash()).String()

	identity, err := mh.Sum([]byte("tiny"), mh.IDENTITY, -1)
	if err != nil {
		t.Fatalf("mh.Sum() error = %v", err)
	}
	v1Identity := cid.NewCidV1(cid.DagProtobuf, identity).String()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"v0 unchanged", v0, v0, false},
		{"v1 dag-pb sha2-256", v1DagPB, v0, false},
		{"v1 raw leaves", v1Raw, "", true},
		{"v1 identity hash", v1Identity, "", true},
		{"garbage", "not-a-cid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeCID(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, apperrors.ErrMalformedIdentifier) {
				t.Errorf("NormalizeCID(%s) error = %v, want ErrMalformedIdentifier", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeCID(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestHasher_Add(t *testing.T) {
	h := NewHasher()

	first, err := h.Add(context.Background(), []byte("hello fyles"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	second, err := h.Add(context.Background(), []byte("hello fyles"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	other, err := h.Add(context.Background(), []byte("other bytes"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if first != second {
		t.Errorf("same bytes hashed to %s and %s", first, second)
	}
	if first == other {
		t.Errorf("different bytes share %s", first)
	}
	if !strings.HasPrefix(first, "Qm") || len(first) != 46 {
		t.Errorf("Add() = %s, want a CIDv0", first)
	}

	enc, err := hashcodec.Encode(first)
	if err != nil {
		t.Fatalf("Encode(%s) error = %v", first, err)
	}
	if enc.HashFunction != "0x12" || enc.HashSize != "0x20" {
		t.Errorf("Encode(%s) = %+v", first, enc)
	}
}

func TestHasher_AddCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHasher().Add(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Add() error = %v, want context.Canceled", err)
	}
}
