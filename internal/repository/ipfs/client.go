// Package ipfs adds file bytes to IPFS, either through a node's HTTP API or by computing the
// identifier locally without publishing anything.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	apperrors "github.com/zzenonn/fyles/internal/errors"
)

const addPath = "/api/v0/add"

// AddResponse is the body the add endpoint returns.
type AddResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Client talks to the HTTP API of an IPFS node or pinning service.
type Client struct {
	apiURL string
	token  string
	quiet  bool
	client *retryablehttp.Client
}

// NewClient creates a client for the API rooted at apiURL (e.g. http://localhost:5001).
// retryMax is the number of transport level retries; zero disables them.
func NewClient(apiURL, token string, retryMax int, quiet bool) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.Logger = leveledLogger{logger: log.StandardLogger()}

	return &Client{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		token:  token,
		quiet:  quiet,
		client: rc,
	}
}

// Add uploads data, pins it and returns its base-58 multihash.
func (c *Client) Add(ctx context.Context, data []byte) (string, error) {
	payload := &bytes.Buffer{}
	writer := multipart.NewWriter(payload)
	part, err := writer.CreateFormFile("file", "file")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	body := payload.Bytes()

	// the request body is rebuilt for every attempt, so the bar restarts with it
	var bar *progressbar.ProgressBar
	if !c.quiet {
		bar = progressbar.DefaultBytes(int64(len(body)), "pinning")
	}
	reader := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		var r io.Reader = bytes.NewReader(body)
		if bar != nil {
			bar.Reset()
			pbReader := progressbar.NewReader(r, bar)
			r = &pbReader
		}
		return r, nil
	})

	url := c.apiURL + addPath + "?pin=true&cid-version=0"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = int64(len(body))
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	log.Debugf("Adding %d bytes via %s", len(data), c.apiURL)
	res, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipfs add returned %s: %s", res.Status, strings.TrimSpace(string(respBody)))
	}

	var added AddResponse
	if err := json.Unmarshal(lastLine(respBody), &added); err != nil {
		return "", fmt.Errorf("failed to parse ipfs add response: %w", err)
	}
	return NormalizeCID(added.Hash)
}

// NormalizeCID returns the base-58 multihash form of an identifier. CIDv0 strings are returned
// unchanged; a CIDv1 of a dag-pb node hashed with sha2-256 is converted to its CIDv0. Anything
// else has no base-58 multihash form and is rejected.
func NormalizeCID(s string) (string, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrMalformedIdentifier, err)
	}
	if c.Version() == 0 {
		return c.String(), nil
	}

	prefix := c.Prefix()
	if prefix.Codec != cid.DagProtobuf || prefix.MhType != mh.SHA2_256 {
		return "", apperrors.Wrap(apperrors.ErrMalformedIdentifier,
			fmt.Errorf("cid %s (codec 0x%x, hash 0x%x) has no v0 form", s, prefix.Codec, prefix.MhType))
	}
	return cid.NewCidV0(c.Hash()).String(), nil
}

// lastLine returns the final non-empty line. The add endpoint streams one JSON object per added
// entry and the last one describes the root.
func lastLine(body []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(body), []byte("\n"))
	return lines[len(lines)-1]
}
