package screenshot

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Source resolves a screenshot reference string to raw image bytes.
// References may be local file paths or http(s) URLs.
type Source interface {
	Resolve(ref string) ([]byte, error)
}

// Resolver reads local files and fetches remote URLs. Errors are returned to
// the caller, who treats a missing screenshot as a soft condition, never a
// turn failure.
type Resolver struct {
	client *http.Client
}

var _ Source = &Resolver{}

func NewResolver() *Resolver {
	return &Resolver{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *Resolver) Resolve(ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty screenshot reference")
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return r.fetch(ref)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read screenshot %s: %w", ref, err)
	}
	return data, nil
}

func (r *Resolver) fetch(url string) ([]byte, error) {
	resp, err := r.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch screenshot %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch screenshot %s: status %d", url, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
