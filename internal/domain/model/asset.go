package model

import "fmt"

// AssetKind records where an image came from.
type AssetKind string

const (
	AssetKindLocal     AssetKind = "local"
	AssetKindRemote    AssetKind = "remote"
	AssetKindGenerated AssetKind = "generated"
)

// ImageAsset is an image loaded into memory and ready for upload.
type ImageAsset struct {
	Source   string
	Kind     AssetKind
	MIMEType string
	FileName string
	Data     []byte
}

// UploadedMedia is the platform's handle for an uploaded image. URL is only
// populated by the temporary-material upload used for unverified accounts.
type UploadedMedia struct {
	MediaID string
	URL     string
}

// ImageSize is a width/height pair in pixels.
type ImageSize struct {
	Width  int
	Height int
}

// CoverSize is the platform's preferred cover ratio (2.35:1).
var CoverSize = ImageSize{Width: 900, Height: 384}

// String renders the size as "900*384", the form image generators accept.
func (s ImageSize) String() string {
	return fmt.Sprintf("%d*%d", s.Width, s.Height)
}
