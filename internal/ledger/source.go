package ledger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source yields the raw bytes of a negotiation export. The same loader
// serves both input modes; only the way bytes are obtained differs.
type Source interface {
	// Name is the file name or URL, inspected by the wrong-export guard
	// before any bytes are read.
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource wraps an uploaded spreadsheet export.
type FileSource struct {
	FileName string
	Reader   io.Reader
}

func (s FileSource) Name() string { return s.FileName }

func (s FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(s.Reader), nil
}

// URLSource fetches a public CSV link over plain HTTP(S) GET.
type URLSource struct {
	URL    string
	Client *http.Client
}

func (s URLSource) Name() string { return s.URL }

func (s URLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch ledger: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
