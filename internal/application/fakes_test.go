package application_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
)

// --- Fake platform ---

type uploadCall struct {
	Asset model.ImageAsset
	Tier  model.VerificationTier
}

// fakePlatform records every call. Errors are returned by the matching method
// when set; urlAfterPolls controls how many GetArticleURL calls return "".
type fakePlatform struct {
	mu sync.Mutex

	tokenErr      error
	tier          model.VerificationTier
	tierErr       error
	uploadErr     func(asset model.ImageAsset) error
	draftErr      error
	submitErr     error
	articleURL    string
	urlAfterPolls int
	pollErr       error
	newsErr       error
	sendAllErr    error
	menuErr       error

	uploads  []uploadCall
	drafts   []model.ArticleDraft
	news     []model.ArticleDraft
	submits  []string
	polls    int
	sendAlls []model.BroadcastSettings
	menus    []string
}

var _ driven.Platform = (*fakePlatform)(nil)

func (f *fakePlatform) Token(_ context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "TOKEN", nil
}

func (f *fakePlatform) FetchVerificationTier(_ context.Context) (model.VerificationTier, error) {
	return f.tier, f.tierErr
}

func (f *fakePlatform) UploadImage(_ context.Context, asset model.ImageAsset, tier model.VerificationTier) (model.UploadedMedia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploads = append(f.uploads, uploadCall{Asset: asset, Tier: tier})
	if f.uploadErr != nil {
		if err := f.uploadErr(asset); err != nil {
			return model.UploadedMedia{}, err
		}
	}

	n := len(f.uploads)
	media := model.UploadedMedia{MediaID: fmt.Sprintf("media-%d", n)}
	if tier == model.TierUnverified {
		media.URL = fmt.Sprintf("https://mmbiz.example/img-%d", n)
	}
	return media, nil
}

func (f *fakePlatform) AddDraft(_ context.Context, draft model.ArticleDraft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.drafts = append(f.drafts, draft)
	if f.draftErr != nil {
		return "", f.draftErr
	}
	return fmt.Sprintf("draft-%d", len(f.drafts)), nil
}

func (f *fakePlatform) SubmitPublish(_ context.Context, mediaID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submits = append(f.submits, mediaID)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "pub-" + mediaID, nil
}

func (f *fakePlatform) GetArticleURL(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++
	if f.pollErr != nil && f.polls == 1 {
		return "", f.pollErr
	}
	if f.polls <= f.urlAfterPolls {
		return "", nil
	}
	return f.articleURL, nil
}

func (f *fakePlatform) UploadNews(_ context.Context, draft model.ArticleDraft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.news = append(f.news, draft)
	if f.newsErr != nil {
		return "", f.newsErr
	}
	return fmt.Sprintf("news-%d", len(f.news)), nil
}

func (f *fakePlatform) SendAll(_ context.Context, _ string, settings model.BroadcastSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sendAlls = append(f.sendAlls, settings)
	return f.sendAllErr
}

func (f *fakePlatform) CreateMenu(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.menus = append(f.menus, url)
	return f.menuErr
}

// --- Fake asset collaborators ---

type fakeResolver struct {
	mu     sync.Mutex
	assets map[string]model.ImageAsset
	calls  []string
}

func newFakeResolver(refs ...string) *fakeResolver {
	r := &fakeResolver{assets: map[string]model.ImageAsset{}}
	for _, ref := range refs {
		r.assets[ref] = model.ImageAsset{
			Source:   ref,
			Kind:     model.AssetKindRemote,
			MIMEType: "image/png",
			FileName: "image.png",
			Data:     []byte("png:" + ref),
		}
	}
	return r
}

func (r *fakeResolver) Resolve(_ context.Context, ref string) (model.ImageAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, ref)
	asset, ok := r.assets[ref]
	if !ok {
		return model.ImageAsset{}, fmt.Errorf("resolve %s: %w", ref, model.ErrAssetNotFound)
	}
	return asset, nil
}

type fakeCropper struct {
	mu       sync.Mutex
	err      error
	cleanups int
}

func (c *fakeCropper) Crop(asset model.ImageAsset, size model.ImageSize) (model.ImageAsset, func(), error) {
	cleanup := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cleanups++
	}
	if c.err != nil {
		return model.ImageAsset{}, cleanup, c.err
	}
	cropped := asset
	cropped.Source = fmt.Sprintf("cropped-%s:%s", size, asset.Source)
	cropped.FileName = "cover.jpg"
	cropped.MIMEType = "image/jpeg"
	return cropped, cleanup, nil
}

func (c *fakeCropper) cleanupCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanups
}

type fakeGenerator struct {
	mu      sync.Mutex
	ref     string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ model.ImageSize) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prompts = append(g.prompts, prompt)
	return g.ref, g.err
}

func defaultCover() model.ImageAsset {
	return model.ImageAsset{
		Source:   "default-cover",
		Kind:     model.AssetKindLocal,
		MIMEType: "image/png",
		FileName: "default_cover.png",
		Data:     []byte("default"),
	}
}
