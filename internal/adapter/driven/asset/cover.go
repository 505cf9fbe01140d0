package asset

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
)

// CoverJPEGQuality is the encoder quality of cropped covers.
const CoverJPEGQuality = 95

//go:embed default_cover.png
var defaultCover []byte

// DefaultCover returns the bundled cover used when no cover is given and
// generation produced nothing.
func DefaultCover() model.ImageAsset {
	return model.ImageAsset{
		Source:   "embedded:default_cover.png",
		Kind:     model.AssetKindGenerated,
		MIMEType: "image/png",
		FileName: "default_cover.png",
		Data:     defaultCover,
	}
}

// Compile-time interface satisfaction check.
var _ driven.CoverCropper = (*Cropper)(nil)

// Cropper implements driven.CoverCropper. The cropped JPEG is encoded into a
// temporary file under TempDir ("" means the OS default) and the returned
// asset carries the file's contents.
type Cropper struct {
	TempDir string
}

// Crop scales asset so it covers size, then cuts the centre. The returned
// cleanup removes the staged file; callers defer it.
func (c Cropper) Crop(asset model.ImageAsset, size model.ImageSize) (model.ImageAsset, func(), error) {
	noop := func() {}

	src, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		return model.ImageAsset{}, noop, fmt.Errorf("decode cover %q: %w", asset.Source, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds(), size), draw.Src, nil)

	f, err := os.CreateTemp(c.TempDir, "cover-*.jpg")
	if err != nil {
		return model.ImageAsset{}, noop, fmt.Errorf("create cover temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove cover temp file", "path", f.Name(), "error", err)
		}
	}

	w := bufio.NewWriter(f)
	if err := jpeg.Encode(w, dst, &jpeg.Options{Quality: CoverJPEGQuality}); err != nil {
		f.Close()
		cleanup()
		return model.ImageAsset{}, noop, fmt.Errorf("encode cover: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		cleanup()
		return model.ImageAsset{}, noop, fmt.Errorf("write cover temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return model.ImageAsset{}, noop, fmt.Errorf("close cover temp file: %w", err)
	}

	// The upload payload is what landed on disk.
	data, err := os.ReadFile(f.Name())
	if err != nil {
		cleanup()
		return model.ImageAsset{}, noop, fmt.Errorf("read cover temp file: %w", err)
	}

	return model.ImageAsset{
		Source:   f.Name(),
		Kind:     asset.Kind,
		MIMEType: "image/jpeg",
		FileName: "cover.jpg",
		Data:     data,
	}, cleanup, nil
}

// coverRect is the centred region of b with the aspect ratio of size. Scaling
// that region to size is the same as scale-to-cover followed by a centre crop.
func coverRect(b image.Rectangle, size model.ImageSize) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	cropW, cropH := w, h
	if w*size.Height > h*size.Width {
		cropW = h * size.Width / size.Height
	} else {
		cropH = w * size.Height / size.Width
	}
	if cropW < 1 {
		cropW = 1
	}
	if cropH < 1 {
		cropH = 1
	}
	x0 := b.Min.X + (w-cropW)/2
	y0 := b.Min.Y + (h-cropH)/2
	return image.Rect(x0, y0, x0+cropW, y0+cropH)
}
