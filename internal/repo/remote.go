// Package repo implements the persistence layer: the remote record store
// client holding the authoritative state document, the local cache with
// debounced flushing, and the SQLite-backed delivery audit log.
package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/avendel/go-delivery-backend/internal/config"
	"github.com/avendel/go-delivery-backend/internal/domain"
)

// Remote abstracts the remote JSON document store. The store holds exactly
// one document; Load and Store transfer it whole.
type Remote interface {
	// Load fetches the full state document.
	Load(ctx context.Context) (*domain.StateDocument, error)
	// Store replaces the full state document (last write wins).
	Store(ctx context.Context, doc *domain.StateDocument) error
}

// accessKeyHeader authenticates requests against the document store.
const accessKeyHeader = "X-Access-Key"

// DocStore is the HTTP client for the remote document store. It is safe for
// concurrent use.
type DocStore struct {
	url       string
	accessKey string
	client    *http.Client
}

// NewDocStore builds a DocStore from store configuration.
func NewDocStore(cfg config.StoreConfig) *DocStore {
	return &DocStore{
		url:       cfg.URL,
		accessKey: cfg.AccessKey,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Load implements Remote. The decoded document is normalized so callers can
// rely on non-nil maps.
func (s *DocStore) Load(ctx context.Context) (*domain.StateDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(accessKeyHeader, s.accessKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("record store load: unexpected status %d", resp.StatusCode)
	}

	var doc domain.StateDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("record store load: decode: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// Store implements Remote.
func (s *DocStore) Store(ctx context.Context, doc *domain.StateDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set(accessKeyHeader, s.accessKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("record store save: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// drainClose consumes the remainder of a response body before closing so the
// underlying connection can be reused.
func drainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<20))
	_ = rc.Close()
}

var _ Remote = (*DocStore)(nil)
