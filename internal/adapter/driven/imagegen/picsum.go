// Package imagegen provides cover image generators.
package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
)

// DefaultPicsumURL is the public picsum.photos endpoint.
const DefaultPicsumURL = "https://picsum.photos"

// Compile-time interface satisfaction checks.
var (
	_ driven.ImageGenerator = (*Picsum)(nil)
	_ driven.ImageGenerator = None{}
)

// Picsum returns random stock photos of the requested size. The prompt is
// ignored.
type Picsum struct {
	http    *http.Client
	baseURL string
	seed    func() int
}

// NewPicsum creates a Picsum generator against the public endpoint.
func NewPicsum(timeout time.Duration) *Picsum {
	return NewPicsumWithHTTPClient(&http.Client{Timeout: timeout}, DefaultPicsumURL)
}

// NewPicsumWithHTTPClient creates a Picsum generator with a custom client and
// base URL. This constructor is intended for testing.
func NewPicsumWithHTTPClient(httpClient *http.Client, baseURL string) *Picsum {
	return &Picsum{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		seed:    func() int { return rand.IntN(1_000_000) + 1 },
	}
}

// Generate resolves a random image URL. The random endpoint redirects to a
// concrete image; the final URL is returned so later downloads fetch the same
// picture.
func (p *Picsum) Generate(ctx context.Context, prompt string, size model.ImageSize) (string, error) {
	u := fmt.Sprintf("%s/%d/%d?random=%d", p.baseURL, size.Width, size.Height, p.seed())

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return "", fmt.Errorf("picsum request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("picsum request: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("picsum request: unexpected status %d", resp.StatusCode)
	}

	final := resp.Request.URL.String()
	slog.Debug("cover image generated", "generator", "picsum", "size", size.String(), "url", final)
	return final, nil
}

// None is a generator that never produces an image.
type None struct{}

// Generate always returns an empty reference.
func (None) Generate(context.Context, string, model.ImageSize) (string, error) {
	return "", nil
}

// New returns the generator registered under name.
func New(name string, timeout time.Duration) (driven.ImageGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "picsum":
		return NewPicsum(timeout), nil
	case "none", "off":
		return None{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown image generator %q", model.ErrConfiguration, name)
	}
}
