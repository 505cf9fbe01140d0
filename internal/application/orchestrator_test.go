package application_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iniwap/AIWriteX/internal/application"
	"github.com/iniwap/AIWriteX/internal/domain/model"
)

const (
	imageA = "https://img.example/a.png"
	imageB = "https://img.example/b.jpg?w=800&h=600"
)

type orchestratorFixture struct {
	platform  *fakePlatform
	resolver  *fakeResolver
	cropper   *fakeCropper
	generator *fakeGenerator
}

func newFixture(refs ...string) *orchestratorFixture {
	return &orchestratorFixture{
		platform:  &fakePlatform{articleURL: "https://mp.example/s/abc"},
		resolver:  newFakeResolver(refs...),
		cropper:   &fakeCropper{},
		generator: &fakeGenerator{},
	}
}

func (f *orchestratorFixture) orchestrator() *application.Orchestrator {
	return application.NewOrchestrator(application.OrchestratorDeps{
		Platform:     f.platform,
		Resolver:     f.resolver,
		Cropper:      f.cropper,
		Generator:    f.generator,
		DefaultCover: defaultCover,
		Poll:         application.PollPolicy{Attempts: 3, Interval: 0},
	})
}

func baseRequest() application.Request {
	return application.Request{
		Credential: model.Credential{
			AppID:     "wx0123456789abcdef",
			AppSecret: "secret",
			Author:    "作者",
		},
		ArticlePath: "articles/示例.html",
		Title:       "系列|示例标题",
		Digest:      "这是摘要",
		Body:        "<div><p>正文</p></div>",
		CoverPath:   "cover.png",
	}
}

func TestPublish_ScenarioA_UnverifiedPublishesWithRewrittenImages(t *testing.T) {
	f := newFixture("cover.png", imageA, imageB)
	req := baseRequest()
	req.Body = fmt.Sprintf(
		"<div>\n  <p>%s</p>\n  <img src=%q>\n  <img src=%q>\n  <img src=%q>\n</div>",
		strings.Repeat("这是一段足够长的正文内容", 3), imageA, imageB, imageA,
	)

	out := f.orchestrator().Publish(context.Background(), req)

	require.NoError(t, out.Err)
	assert.Equal(t, model.PublishStatusPublished, out.Result.Status)
	assert.NotEmpty(t, out.Result.PublishID)
	assert.Equal(t, "https://mp.example/s/abc", out.Result.URL)
	assert.Equal(t, model.PlatformName, out.Result.Platform)
	assert.Equal(t, model.StagePolledURL, out.Stage)
	assert.Equal(t, model.FailureNone, out.Kind)

	assert.NotContains(t, out.Body, "img.example")
	assert.Equal(t, 2, out.Rewrite.Replaced[imageA])
	assert.Equal(t, 1, out.Rewrite.Replaced[imageB])
	assert.Empty(t, out.Rewrite.Skipped)
	assert.Contains(t, out.Body, "<section>")
	assert.Contains(t, out.Body, `text-indent: 2em;`)
	assert.NotContains(t, out.Body, "\n")

	require.Len(t, f.platform.uploads, 3)
	assert.Equal(t, "cover.jpg", f.platform.uploads[0].Asset.FileName, "cover is cropped")
	assert.Equal(t, model.TierUnverified, f.platform.uploads[0].Tier)
	require.Len(t, f.platform.drafts, 1)
	assert.Equal(t, "media-1", f.platform.drafts[0].ThumbMediaID)
	assert.Equal(t, "作者", f.platform.drafts[0].Author)
	assert.Equal(t, out.Body, f.platform.drafts[0].Content)
	assert.Equal(t, 1, f.cropper.cleanupCount(), "temp cover removed")
}

func TestPublish_ScenarioB_UnauthorizedSubmitIsSoftSuccess(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.submitErr = &model.PlatformError{Op: "submit_publish", Code: 9001, Message: "api unauthorized"}

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, model.PublishStatusManualPublishRequired, out.Result.Status)
	assert.True(t, out.Result.Status.Succeeded())
	assert.Equal(t, model.FailureSoftUnauthorized, out.Kind)
	assert.Equal(t, model.ClassQuotaOrPermission, out.Class)
	assert.Equal(t, "draft-1", out.Result.PublishID)
	assert.Empty(t, out.Result.URL)
	assert.Equal(t, "api unauthorized", out.PlatformMessage)
	assert.Equal(t, model.StageDraftCreated, out.Stage)
	assert.Zero(t, f.platform.polls)
	assert.Equal(t, 1, f.cropper.cleanupCount())
}

func TestPublish_ScenarioC_ZeroTagBroadcastIsNotSent(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.tier = model.TierVerified
	req := baseRequest()
	req.Credential.Broadcast = model.BroadcastSettings{Enabled: true, ToAll: false, TagID: 0}

	out := f.orchestrator().Publish(context.Background(), req)

	assert.Empty(t, f.platform.sendAlls, "no sendall with tag_id 0")
	assert.Equal(t, model.PublishStatusPartialSuccess, out.Result.Status)
	assert.Equal(t, model.FailureConfiguration, out.Kind)
	assert.Equal(t, model.ClassConfiguration, out.Class)
	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, model.ErrConfiguration)
	assert.Equal(t, "news-1", out.Result.PublishID)
	assert.Equal(t, model.StageBroadcast, out.Stage)

	require.Len(t, f.platform.drafts, 1, "draft is created on the verified path too")
	require.Len(t, f.platform.news, 1)
	assert.Empty(t, f.platform.submits)
	assert.Equal(t, model.TierVerified, f.platform.uploads[0].Tier)
}

func TestPublish_ScenarioD_MissingCoverFallsBackToDefault(t *testing.T) {
	f := newFixture()
	req := baseRequest()
	req.CoverPath = ""

	out := f.orchestrator().Publish(context.Background(), req)

	require.NoError(t, out.Err)
	require.Len(t, f.generator.prompts, 1)
	assert.Equal(t, "主题:示例标题,内容:这是摘要", f.generator.prompts[0])
	require.NotEmpty(t, f.platform.uploads)
	assert.Equal(t, "default-cover", f.platform.uploads[0].Asset.Source)
	require.Len(t, f.platform.drafts, 1)
	assert.Equal(t, model.PublishStatusPublished, out.Result.Status)
	assert.Zero(t, f.cropper.cleanupCount(), "nothing cropped")
}

func TestPublish_GeneratedCoverIsUsed(t *testing.T) {
	f := newFixture("https://picsum.example/900/384")
	f.generator.ref = "https://picsum.example/900/384"
	req := baseRequest()
	req.CoverPath = ""

	out := f.orchestrator().Publish(context.Background(), req)

	require.NoError(t, out.Err)
	assert.Equal(t, model.AssetKindGenerated, f.platform.uploads[0].Asset.Kind)
}

func TestPublish_GeneratorErrorFallsBackToDefault(t *testing.T) {
	f := newFixture()
	f.generator.err = errors.New("backend down")
	req := baseRequest()
	req.CoverPath = ""

	out := f.orchestrator().Publish(context.Background(), req)

	require.NoError(t, out.Err)
	assert.Equal(t, "default-cover", f.platform.uploads[0].Asset.Source)
}

func TestPublish_TokenFailureIsFatal(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.tokenErr = fmt.Errorf("get token: %w", model.ErrAuth)

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, model.PublishStatusFailed, out.Result.Status)
	assert.Equal(t, model.FailureAuth, out.Kind)
	assert.Equal(t, model.ClassAuth, out.Class)
	assert.Equal(t, model.StageResolving, out.Stage)
	assert.Empty(t, f.platform.uploads)
	assert.Empty(t, f.platform.drafts)
}

func TestPublish_MissingCoverFileIsFatal(t *testing.T) {
	f := newFixture()

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, model.PublishStatusFailed, out.Result.Status)
	assert.Equal(t, model.FailureAsset, out.Kind)
	assert.ErrorIs(t, out.Err, model.ErrAssetNotFound)
	assert.Empty(t, f.platform.drafts)
}

func TestPublish_CoverUploadRejectedIsFatal(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.uploadErr = func(model.ImageAsset) error {
		return &model.PlatformError{Op: "upload_image", Code: 40005, Message: "invalid file type"}
	}

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, model.PublishStatusFailed, out.Result.Status)
	assert.Equal(t, model.FailureUploadRejected, out.Kind)
	assert.Equal(t, model.ClassRejected, out.Class)
	assert.Equal(t, "invalid file type", out.PlatformMessage)
	assert.Empty(t, f.platform.drafts)
	assert.Equal(t, 1, f.cropper.cleanupCount(), "temp cover removed on failure")
}

func TestPublish_CropFailureUsesOriginalCover(t *testing.T) {
	f := newFixture("cover.png")
	f.cropper.err = errors.New("unsupported format")

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	require.NoError(t, out.Err)
	assert.Equal(t, "cover.png", f.platform.uploads[0].Asset.Source)
	assert.Equal(t, 1, f.cropper.cleanupCount())
}

func TestPublish_InBodyImageFailureIsSkipped(t *testing.T) {
	f := newFixture("cover.png", imageA)
	req := baseRequest()
	req.Body = fmt.Sprintf(`<p><img src=%q><img src="missing.png"></p>`, imageA)

	out := f.orchestrator().Publish(context.Background(), req)

	require.NoError(t, out.Err)
	assert.Equal(t, model.PublishStatusPublished, out.Result.Status)
	assert.Equal(t, 1, out.Rewrite.Replaced[imageA])
	assert.ErrorIs(t, out.Rewrite.Skipped["missing.png"], model.ErrAssetNotFound)
	assert.Contains(t, out.Body, `src="missing.png"`)
}

func TestPublish_DraftRejectedIsFatal(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.draftErr = &model.PlatformError{Op: "draft_add", Code: 45166, Message: "invalid content"}

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, model.PublishStatusFailed, out.Result.Status)
	assert.Equal(t, model.FailureDraftRejected, out.Kind)
	assert.Equal(t, "invalid content", out.PlatformMessage)
	assert.Equal(t, model.StageCoverReady, out.Stage)
	assert.NotEmpty(t, out.Body, "body is reported on failure")
	assert.Empty(t, f.platform.submits)
}

func TestPublish_DraftTruncatesTitleAndDigest(t *testing.T) {
	f := newFixture("cover.png")
	req := baseRequest()
	req.Title = strings.Repeat("标", 70)
	req.Digest = strings.Repeat("摘", 130)

	f.orchestrator().Publish(context.Background(), req)

	require.Len(t, f.platform.drafts, 1)
	assert.Equal(t, strings.Repeat("标", model.MaxTitleRunes), f.platform.drafts[0].Title)
	assert.Equal(t, strings.Repeat("摘", model.MaxDigestRunes), f.platform.drafts[0].Digest)
}

func TestPublish_HardRejectedSubmit(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.submitErr = &model.PlatformError{Op: "submit_publish", Code: 53503, Message: "draft not ready"}

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, model.PublishStatusFailed, out.Result.Status)
	assert.Equal(t, model.FailureHardRejected, out.Kind)
	assert.Equal(t, "draft-1", out.DraftMediaID)
}

func TestPublish_PollExhaustionKeepsPublished(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.urlAfterPolls = 100

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, model.PublishStatusPublished, out.Result.Status)
	assert.Equal(t, model.FailurePollExhausted, out.Kind)
	assert.Empty(t, out.Result.URL)
	assert.Equal(t, 3, f.platform.polls)
	assert.Equal(t, model.StagePublishedUnverified, out.Stage)
}

func TestPublish_PollErrorIsRetried(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.pollErr = errors.New("temporary")

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, "https://mp.example/s/abc", out.Result.URL)
	assert.Equal(t, 2, f.platform.polls)
}

func TestPublish_PollStopsOnCancellation(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.urlAfterPolls = 100
	o := application.NewOrchestrator(application.OrchestratorDeps{
		Platform:     f.platform,
		Resolver:     f.resolver,
		Cropper:      f.cropper,
		DefaultCover: defaultCover,
		Poll:         application.PollPolicy{Attempts: 10, Interval: time.Hour},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := o.Publish(ctx, baseRequest())

	assert.Equal(t, model.PublishStatusPublished, out.Result.Status)
	assert.Empty(t, out.Result.URL)
	assert.Equal(t, 1, f.platform.polls)
}

func TestPublish_CreatesMenuWhenConfigured(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.menuErr = errors.New("menu quota")
	req := baseRequest()
	req.Credential.CreateMenu = true

	out := f.orchestrator().Publish(context.Background(), req)

	assert.Equal(t, []string{"https://mp.example/s/abc"}, f.platform.menus)
	assert.Equal(t, model.PublishStatusPublished, out.Result.Status, "menu failure is logged only")
}

func TestPublish_TierFailureTakesUnverifiedPath(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.tierErr = errors.New("48001 api unauthorized")

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, model.TierUnverified, out.Tier)
	assert.Len(t, f.platform.submits, 1)
	assert.Empty(t, f.platform.news)
}

func TestPublish_VerifiedUnauthorizedNewsFails(t *testing.T) {
	f := newFixture("cover.png")
	f.platform.tier = model.TierVerified
	f.platform.newsErr = &model.PlatformError{Op: "upload_news", Code: 48001, Message: "api unauthorized"}

	out := f.orchestrator().Publish(context.Background(), baseRequest())

	assert.Equal(t, model.PublishStatusFailed, out.Result.Status)
	assert.Equal(t, model.FailureHardRejected, out.Kind)
	assert.Equal(t, model.ClassQuotaOrPermission, out.Class)
	assert.Equal(t, model.StageDraftCreated, out.Stage)
}

func TestPublish_VerifiedBroadcast(t *testing.T) {
	tests := []struct {
		name       string
		settings   model.BroadcastSettings
		sendAllErr error
		wantStatus model.PublishStatus
		wantKind   model.FailureKind
		wantSends  int
	}{
		{"disabled", model.BroadcastSettings{}, nil, model.PublishStatusPublished, model.FailureNone, 0},
		{"to all", model.BroadcastSettings{Enabled: true, ToAll: true}, nil, model.PublishStatusPublished, model.FailureNone, 1},
		{"by tag", model.BroadcastSettings{Enabled: true, TagID: 7}, nil, model.PublishStatusPublished, model.FailureNone, 1},
		{
			"rejected", model.BroadcastSettings{Enabled: true, ToAll: true},
			&model.PlatformError{Op: "sendall", Code: 45028, Message: "has no masssend quota"},
			model.PublishStatusPartialSuccess, model.FailureBroadcastRejected, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("cover.png")
			f.platform.tier = model.TierVerified
			f.platform.sendAllErr = tt.sendAllErr
			req := baseRequest()
			req.Credential.Broadcast = tt.settings

			out := f.orchestrator().Publish(context.Background(), req)

			assert.Equal(t, tt.wantStatus, out.Result.Status)
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Len(t, f.platform.sendAlls, tt.wantSends)
			assert.Equal(t, "news-1", out.Result.PublishID)
		})
	}
}

func TestPublish_VerifiedBodyImagesUseURLUpload(t *testing.T) {
	f := newFixture("cover.png", imageA)
	f.platform.tier = model.TierVerified
	req := baseRequest()
	req.Body = fmt.Sprintf(`<p><img src=%q></p>`, imageA)

	out := f.orchestrator().Publish(context.Background(), req)

	require.Len(t, f.platform.uploads, 2)
	assert.Equal(t, model.TierVerified, f.platform.uploads[0].Tier)
	assert.Equal(t, model.TierUnverified, f.platform.uploads[1].Tier)
	assert.NotContains(t, out.Body, imageA)
}
