package driven

import (
	"context"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

// AssetResolver loads an image reference (local path or http(s) URL) into memory.
// A missing local file returns an error wrapping model.ErrAssetNotFound; a failed
// download returns one wrapping model.ErrDownloadFailed.
type AssetResolver interface {
	Resolve(ctx context.Context, ref string) (model.ImageAsset, error)
}

// CoverCropper scales and center-crops a cover to the given size.
// The returned cleanup func removes any temporary file and is never nil.
type CoverCropper interface {
	Crop(asset model.ImageAsset, size model.ImageSize) (model.ImageAsset, func(), error)
}

// ImageGenerator produces a cover image for a prompt. An empty reference with a
// nil error means the generator had nothing to offer.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, size model.ImageSize) (string, error)
}
