package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Doer executes outbound requests. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPSource fetches the listing from a backend endpoint returning either a bare
// JSON array of items or an envelope of the form {"data": [...]}.
type HTTPSource struct {
	URL    string
	Client Doer
	Cache  *Cache
	Logger zerolog.Logger
}

// Load fetches the listing, refreshing the cache on success and falling back to
// the cached copy when the endpoint fails.
func (s HTTPSource) Load(ctx context.Context) ([]Item, error) {
	if strings.TrimSpace(s.URL) == "" {
		return nil, errors.New("catalog: listing url is required")
	}
	if s.Client == nil {
		return nil, errors.New("catalog: http client is required")
	}
	items, err := s.fetch(ctx)
	if err == nil {
		if cacheErr := s.Cache.Set(ctx, items); cacheErr != nil {
			s.Logger.Warn().Err(cacheErr).Msg("catalog_cache_store_failed")
		}
		return items, nil
	}
	cached, ok, cacheErr := s.Cache.Get(ctx)
	if cacheErr != nil {
		s.Logger.Warn().Err(cacheErr).Msg("catalog_cache_read_failed")
	}
	if ok {
		s.Logger.Warn().Err(err).Int("items", len(cached)).Msg("catalog_served_from_cache")
		return cached, nil
	}
	return nil, err
}

func (s HTTPSource) fetch(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return decodeListing(body)
}

func decodeListing(body []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("decode listing: empty body")
	}
	var items []Item
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		return items, nil
	}
	var envelope struct {
		Data []Item `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	if envelope.Data == nil {
		return nil, errors.New("decode listing: missing data field")
	}
	return envelope.Data, nil
}
