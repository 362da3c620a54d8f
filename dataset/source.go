// Package dataset loads the row records shared by every view and cuts them into windows.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dasdy/gridsync/model"
)

const DefaultURL = "https://www.ag-grid.com/example-assets/olympic-winners.json"

var ErrNoClient = errors.New("http client is not configured")

// FetchError wraps any failure to obtain the dataset.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("fetching %s: %s", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Source produces the full dataset.
type Source interface {
	Fetch(ctx context.Context) ([]model.Row, error)
}

// SourceFunc adapts a function into a Source.
type SourceFunc func(ctx context.Context) ([]model.Row, error)

func (fn SourceFunc) Fetch(ctx context.Context) ([]model.Row, error) {
	return fn(ctx)
}

// HTTPSource issues one GET and decodes a JSON array of objects.
type HTTPSource struct {
	Client  *http.Client
	URL     string
	Timeout time.Duration
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{Client: http.DefaultClient, URL: url, Timeout: timeout}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]model.Row, error) {
	if s.Client == nil {
		return nil, &FetchError{URL: s.URL, Err: ErrNoClient}
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)

		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &FetchError{URL: s.URL, Err: err}
	}

	req.Header.Set("Accept", "application/json")

	slog.Debug("Fetching dataset", "url", s.URL)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: s.URL, Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: s.URL, StatusCode: resp.StatusCode}
	}

	var rows []model.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &FetchError{URL: s.URL, Err: fmt.Errorf("could not decode rows: %w", err)}
	}

	slog.Info("Fetched dataset", "url", s.URL, "rows", len(rows))

	return rows, nil
}
