// Package asset loads image references from disk or the network and prepares covers.
package asset

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
)

// MaxDownloadBytes caps the size of a remote image.
const MaxDownloadBytes = 20 << 20

// Compile-time interface satisfaction check.
var _ driven.AssetResolver = (*Resolver)(nil)

// Resolver implements driven.AssetResolver.
type Resolver struct {
	http    *http.Client
	baseDir string
}

// NewResolver creates a Resolver whose remote fetches go through an in-memory
// HTTP cache, so an image shared by several articles or accounts in one batch
// is revalidated instead of downloaded again. Relative local paths are
// resolved against baseDir.
func NewResolver(baseDir string, timeout time.Duration) *Resolver {
	return &Resolver{
		http: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   timeout,
		},
		baseDir: baseDir,
	}
}

// NewResolverWithHTTPClient creates a Resolver with a custom http.Client.
// This constructor is intended for testing.
func NewResolverWithHTTPClient(httpClient *http.Client, baseDir string) *Resolver {
	return &Resolver{http: httpClient, baseDir: baseDir}
}

// Resolve loads ref into memory. HTML entities in ref are decoded first, since
// references are usually lifted out of rendered markup.
func (r *Resolver) Resolve(ctx context.Context, ref string) (model.ImageAsset, error) {
	ref = html.UnescapeString(strings.TrimSpace(ref))
	if ref == "" {
		return model.ImageAsset{}, fmt.Errorf("resolve asset: %w: empty reference", model.ErrAssetNotFound)
	}

	if IsRemote(ref) {
		return r.download(ctx, ref)
	}
	return r.readLocal(ref)
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (r *Resolver) readLocal(ref string) (model.ImageAsset, error) {
	p := ref
	if strings.HasPrefix(strings.ToLower(p), "file://") {
		u, err := url.Parse(p)
		if err != nil {
			return model.ImageAsset{}, fmt.Errorf("resolve asset %q: %w: %w", ref, model.ErrAssetNotFound, err)
		}
		p = u.Path
	}
	if !filepath.IsAbs(p) && r.baseDir != "" {
		p = filepath.Join(r.baseDir, p)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ImageAsset{}, fmt.Errorf("resolve asset %q: %w", p, model.ErrAssetNotFound)
		}
		return model.ImageAsset{}, fmt.Errorf("read asset %q: %w", p, err)
	}

	return model.ImageAsset{
		Source:   ref,
		Kind:     model.AssetKindLocal,
		MIMEType: mimeFromExtension(p),
		FileName: filepath.Base(p),
		Data:     data,
	}, nil
}

func (r *Resolver) download(ctx context.Context, ref string) (model.ImageAsset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return model.ImageAsset{}, fmt.Errorf("download %q: %w: %w", ref, model.ErrDownloadFailed, err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return model.ImageAsset{}, fmt.Errorf("download %q: %w: %w", ref, model.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.ImageAsset{}, fmt.Errorf("download %q: %w: status %d", ref, model.ErrDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return model.ImageAsset{}, fmt.Errorf("download %q: %w: %w", ref, model.ErrDownloadFailed, err)
	}
	if len(data) > MaxDownloadBytes {
		return model.ImageAsset{}, fmt.Errorf("download %q: %w: larger than %d bytes", ref, model.ErrDownloadFailed, MaxDownloadBytes)
	}

	slog.Debug("asset downloaded",
		"url", ref,
		"bytes", len(data),
		"from_cache", resp.Header.Get(httpcache.XFromCache) == "1",
	)

	// Non-image types are usually a server's sniffed default.
	mimeType := mimeFromHeader(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = mimeFromExtension(resp.Request.URL.Path)
	}

	return model.ImageAsset{
		Source:   ref,
		Kind:     model.AssetKindRemote,
		MIMEType: mimeType,
		FileName: remoteFileName(resp.Request.URL, mimeType),
		Data:     data,
	}, nil
}

func mimeFromHeader(h string) string {
	if h == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(h)
	if err != nil {
		return ""
	}
	return mt
}

func mimeFromExtension(p string) string {
	if mt := mimeFromHeader(mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))); mt != "" {
		return mt
	}
	return "image/jpeg"
}

var extensionByMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// remoteFileName keeps the URL's base name when it carries an extension and
// otherwise derives one from the MIME type.
func remoteFileName(u *url.URL, mimeType string) string {
	base := path.Base(u.Path)
	if path.Ext(base) != "" && base != "/" {
		return base
	}
	if ext, ok := extensionByMIME[mimeType]; ok {
		return "image" + ext
	}
	return "image.jpg"
}
