package driven

import (
	"context"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

// Platform defines the driven port for the official-account content API of a
// single credential. Every method obtains its own access token; a token
// exchange failure surfaces as an error wrapping model.ErrAuth.
type Platform interface {
	// Token returns a valid access token, refreshing it if needed.
	Token(ctx context.Context) (string, error)
	// FetchVerificationTier reports whether the account is qualification-verified.
	FetchVerificationTier(ctx context.Context) (model.VerificationTier, error)

	// UploadImage uploads asset as permanent media (verified) or temporary
	// material (unverified). Only the latter returns a URL.
	UploadImage(ctx context.Context, asset model.ImageAsset, tier model.VerificationTier) (model.UploadedMedia, error)

	// AddDraft creates a draft and returns its media ID.
	AddDraft(ctx context.Context, draft model.ArticleDraft) (string, error)
	// SubmitPublish submits a draft for free-publish and returns the publish ID.
	SubmitPublish(ctx context.Context, mediaID string) (string, error)
	// GetArticleURL returns the article URL of a free-publish job, or "" while
	// the job has not produced one yet.
	GetArticleURL(ctx context.Context, publishID string) (string, error)

	// UploadNews creates a listed news item and returns its media ID.
	UploadNews(ctx context.Context, draft model.ArticleDraft) (string, error)
	// SendAll broadcasts a listed news item to followers.
	SendAll(ctx context.Context, mediaID string, settings model.BroadcastSettings) error

	// CreateMenu replaces the custom menu with a single link to url.
	CreateMenu(ctx context.Context, url string) error
}
