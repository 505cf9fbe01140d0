// Package application drives publish runs: it transforms article HTML, walks
// the per-account publish state machine and fans batches out over accounts.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
	"github.com/iniwap/AIWriteX/internal/metrics"
)

// Request is one article to push to one account.
type Request struct {
	Credential  model.Credential
	ArticlePath string
	Title       string
	Digest      string
	Body        string
	// CoverPath is a local path or URL. When empty a cover is generated.
	CoverPath string
}

// Outcome is the terminal report of a publish run. Every field is set on
// every exit path; Err is nil only when nothing went wrong at all.
type Outcome struct {
	Result model.PublishResult
	// Stage is the last state the run reached before terminating.
	Stage model.Stage
	Tier  model.VerificationTier
	Kind  model.FailureKind
	Class model.ErrorClass
	// Message is a human-readable summary for operators.
	Message string
	// PlatformMessage is the platform's errmsg verbatim, if any.
	PlatformMessage string
	// DraftMediaID is set once the draft exists.
	DraftMediaID string
	// Body is the article HTML as submitted, with rewritten asset URLs.
	Body    string
	Rewrite RewriteReport
	Err     error
}

// OrchestratorDeps holds the collaborators of an Orchestrator. Platform,
// Resolver, Cropper and DefaultCover are required.
type OrchestratorDeps struct {
	Platform     driven.Platform
	Resolver     driven.AssetResolver
	Cropper      driven.CoverCropper
	Generator    driven.ImageGenerator
	DefaultCover func() model.ImageAsset
	Transformer  *Transformer
	Metrics      metrics.Recorder
	Poll         PollPolicy
	Logger       *slog.Logger
	Now          func() time.Time
}

// Orchestrator drives one article through draft, publish, poll and the
// optional menu and broadcast steps for the account behind its Platform.
type Orchestrator struct {
	deps OrchestratorDeps
}

type noGenerator struct{}

func (noGenerator) Generate(context.Context, string, model.ImageSize) (string, error) {
	return "", nil
}

// NewOrchestrator fills optional dependencies with defaults.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Generator == nil {
		deps.Generator = noGenerator{}
	}
	if deps.Transformer == nil {
		deps.Transformer = NewTransformer(deps.Resolver, deps.Metrics, deps.Logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Poll == (PollPolicy{}) {
		deps.Poll = DefaultPollPolicy()
	}
	return &Orchestrator{deps: deps}
}

// publishRun is the mutable state of a single Publish call.
type publishRun struct {
	deps       OrchestratorDeps
	req        Request
	logger     *slog.Logger
	tier       model.VerificationTier
	stage      model.Stage
	stageStart time.Time
	body       string
	rewrite    RewriteReport
	draftID    string
	cleanups   []func()
}

// Publish runs the publish state machine for req. It never returns an error;
// failures are reported through the Outcome.
func (o *Orchestrator) Publish(ctx context.Context, req Request) Outcome {
	r := &publishRun{
		deps: o.deps,
		req:  req,
		logger: o.deps.Logger.With(
			"app_id", req.Credential.MaskedAppID(),
			"article", req.ArticlePath,
		),
		body: req.Body,
	}
	defer r.cleanup()

	out := r.run(ctx)
	r.enter(model.StageTerminal)
	o.deps.Metrics.IncPublishOutcome(string(out.Result.Status))

	if out.Result.Status == model.PublishStatusFailed {
		r.logger.Error("publish failed",
			"stage", out.Stage, "kind", out.Kind, "class", out.Class, "error", out.Err)
	} else {
		r.logger.Info("publish finished",
			"status", out.Result.Status, "publish_id", out.Result.PublishID,
			"url", out.Result.URL, "kind", out.Kind)
	}
	return out
}

func (r *publishRun) run(ctx context.Context) Outcome {
	p := r.deps.Platform

	r.enter(model.StageResolving)
	if _, err := p.Token(ctx); err != nil {
		return r.fail(model.FailureAuth, "could not obtain access token", err)
	}

	tier, err := p.FetchVerificationTier(ctx)
	if err != nil {
		r.logger.Warn("verification tier unavailable, assuming unverified", "error", err)
		tier = model.TierUnverified
	}
	r.tier = tier
	r.logger = r.logger.With("tier", tier.String())

	r.body = InjectIndent(NormalizeStructure(r.body))

	thumbID, kind, err := r.uploadCover(ctx)
	if err != nil {
		return r.fail(kind, "cover image could not be prepared", err)
	}
	r.enter(model.StageCoverReady)

	r.body, r.rewrite = r.deps.Transformer.RewriteAssets(ctx, r.body, p)
	r.body = Compact(r.body)

	draft := model.NewArticleDraft(r.req.Title, r.req.Credential.Author, r.req.Digest, r.body, thumbID)

	mediaID, err := p.AddDraft(ctx, draft)
	if err != nil {
		return r.fail(r.kindFor(err, model.FailureDraftRejected), "draft was rejected", err)
	}
	r.draftID = mediaID
	r.enter(model.StageDraftCreated)

	if tier == model.TierVerified {
		return r.publishVerified(ctx, draft)
	}
	return r.publishUnverified(ctx, mediaID)
}

func (r *publishRun) publishUnverified(ctx context.Context, mediaID string) Outcome {
	p := r.deps.Platform

	publishID, err := p.SubmitPublish(ctx, mediaID)
	if err != nil {
		if Classify(err) == model.ClassQuotaOrPermission {
			out := r.outcome(model.PublishStatusManualPublishRequired, mediaID, "")
			out.Kind = model.FailureSoftUnauthorized
			out.Class = model.ClassQuotaOrPermission
			out.Message = "draft created; the account may not free-publish, publish it manually from the platform console"
			out.PlatformMessage = model.PlatformMessage(err)
			out.Err = err
			return out
		}
		return r.fail(model.FailureHardRejected, "publish submission was rejected", err)
	}
	r.enter(model.StagePublishedUnverified)

	url := pollURL(ctx, r.deps.Poll, r.logger, func(ctx context.Context) (string, error) {
		return p.GetArticleURL(ctx, publishID)
	})
	if url == "" {
		out := r.outcome(model.PublishStatusPublished, publishID, "")
		out.Kind = model.FailurePollExhausted
		out.Message = "published; the article URL is not available yet"
		return out
	}
	r.enter(model.StagePolledURL)

	if r.req.Credential.CreateMenu {
		if err := p.CreateMenu(ctx, url); err != nil {
			r.logger.Warn("menu entry not created", "error", err)
		}
	}

	out := r.outcome(model.PublishStatusPublished, publishID, url)
	out.Message = "published"
	return out
}

func (r *publishRun) publishVerified(ctx context.Context, draft model.ArticleDraft) Outcome {
	p := r.deps.Platform

	newsID, err := p.UploadNews(ctx, draft)
	if err != nil {
		return r.fail(model.FailureHardRejected, "listed news upload was rejected", err)
	}
	r.enter(model.StageListedVerified)

	settings := r.req.Credential.Broadcast
	if !settings.Enabled {
		out := r.outcome(model.PublishStatusPublished, newsID, "")
		out.Message = "listed in the account's news"
		return out
	}

	r.enter(model.StageBroadcast)
	if err := r.broadcast(ctx, newsID, settings); err != nil {
		out := r.outcome(model.PublishStatusPartialSuccess, newsID, "")
		out.Kind = model.FailureBroadcastRejected
		if errors.Is(err, model.ErrConfiguration) {
			out.Kind = model.FailureConfiguration
		}
		out.Class = Classify(err)
		out.Message = "listed in the account's news, but not broadcast"
		out.PlatformMessage = model.PlatformMessage(err)
		out.Err = err
		return out
	}

	out := r.outcome(model.PublishStatusPublished, newsID, "")
	out.Message = "listed and broadcast"
	return out
}

// broadcast refuses a tag-scoped send without a tag before reaching the
// platform.
func (r *publishRun) broadcast(ctx context.Context, mediaID string, settings model.BroadcastSettings) error {
	if !settings.ToAll && settings.TagID == 0 {
		return fmt.Errorf("broadcast: %w: tag_id is required when not sending to all followers", model.ErrConfiguration)
	}
	return r.deps.Platform.SendAll(ctx, mediaID, settings)
}

// uploadCover resolves, crops or generates the cover and uploads it with the
// run's tier. The returned kind is only meaningful with a non-nil error.
func (r *publishRun) uploadCover(ctx context.Context) (string, model.FailureKind, error) {
	cover, err := r.loadCover(ctx)
	if err != nil {
		return "", model.FailureAsset, err
	}

	media, err := r.deps.Platform.UploadImage(ctx, cover, r.tier)
	if err != nil {
		return "", r.kindFor(err, model.FailureUploadRejected), fmt.Errorf("upload cover: %w", err)
	}
	return media.MediaID, model.FailureNone, nil
}

func (r *publishRun) loadCover(ctx context.Context) (model.ImageAsset, error) {
	if r.req.CoverPath != "" {
		asset, err := r.deps.Resolver.Resolve(ctx, r.req.CoverPath)
		if err != nil {
			return model.ImageAsset{}, fmt.Errorf("resolve cover: %w", err)
		}

		cropped, cleanup, err := r.deps.Cropper.Crop(asset, model.CoverSize)
		r.cleanups = append(r.cleanups, cleanup)
		if err != nil {
			r.logger.Warn("cover crop failed, using original image", "error", err)
			return asset, nil
		}
		return cropped, nil
	}

	if asset, ok := r.generateCover(ctx); ok {
		return asset, nil
	}

	if r.deps.DefaultCover == nil {
		return model.ImageAsset{}, fmt.Errorf("default cover: %w: none configured", model.ErrConfiguration)
	}
	r.logger.Info("using bundled default cover")
	return r.deps.DefaultCover(), nil
}

func (r *publishRun) generateCover(ctx context.Context) (model.ImageAsset, bool) {
	ref, err := r.deps.Generator.Generate(ctx, coverPrompt(r.req.Title, r.req.Digest), model.CoverSize)
	if err != nil {
		r.logger.Warn("cover generation failed", "error", err)
		return model.ImageAsset{}, false
	}
	if ref == "" {
		return model.ImageAsset{}, false
	}

	asset, err := r.deps.Resolver.Resolve(ctx, ref)
	if err != nil {
		r.logger.Warn("generated cover could not be fetched", "ref", ref, "error", err)
		return model.ImageAsset{}, false
	}
	asset.Kind = model.AssetKindGenerated
	return asset, true
}

// coverPrompt describes the article for the image generator. Titles of the
// form "series|headline" contribute only the last segment.
func coverPrompt(title, digest string) string {
	segments := strings.Split(title, "|")
	return "主题:" + segments[len(segments)-1] + ",内容:" + digest
}

// kindFor reports token failures as auth failures and everything else as fallback.
func (r *publishRun) kindFor(err error, fallback model.FailureKind) model.FailureKind {
	if Classify(err) == model.ClassAuth {
		return model.FailureAuth
	}
	return fallback
}

// enter records the time spent in the previous stage and moves to next.
func (r *publishRun) enter(next model.Stage) {
	now := r.deps.Now()
	if r.stage != "" {
		r.deps.Metrics.ObserveStageDuration(string(r.stage), now.Sub(r.stageStart))
	}
	if next != model.StageTerminal {
		r.stage = next
	}
	r.stageStart = now
	r.logger.Debug("publish stage", "stage", next)
}

func (r *publishRun) outcome(status model.PublishStatus, publishID, url string) Outcome {
	return Outcome{
		Result: model.PublishResult{
			PublishID:   publishID,
			Status:      status,
			PublishedAt: r.deps.Now(),
			Platform:    model.PlatformName,
			URL:         url,
		},
		Stage:        r.stage,
		Tier:         r.tier,
		Kind:         model.FailureNone,
		Class:        model.ClassNone,
		DraftMediaID: r.draftID,
		Body:         r.body,
		Rewrite:      r.rewrite,
	}
}

func (r *publishRun) fail(kind model.FailureKind, message string, err error) Outcome {
	out := r.outcome(model.PublishStatusFailed, "", "")
	out.Kind = kind
	out.Class = Classify(err)
	out.Message = message
	out.PlatformMessage = model.PlatformMessage(err)
	out.Err = err
	return out
}

func (r *publishRun) cleanup() {
	for _, fn := range r.cleanups {
		if fn != nil {
			fn()
		}
	}
}
