package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
)

const defaultConcurrency = 4

// PublishServiceDeps holds the collaborators of a PublishService.
// Orchestrator is a template: its Platform is replaced per account.
type PublishServiceDeps struct {
	Accounts     []model.Credential
	Registry     *PlatformRegistry
	Loader       driven.ArticleLoader
	History      driven.HistoryStore
	Orchestrator OrchestratorDeps
	Concurrency  int
	Logger       *slog.Logger
	NewRunID     func() string
}

// PublishService publishes articles to configured accounts and keeps the
// publish history.
type PublishService struct {
	deps PublishServiceDeps
}

// NewPublishService creates a PublishService.
func NewPublishService(deps PublishServiceDeps) *PublishService {
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultConcurrency
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	if deps.Orchestrator.Logger == nil {
		deps.Orchestrator.Logger = deps.Logger
	}
	return &PublishService{deps: deps}
}

// BatchRequest selects articles and accounts for one run. An empty Accounts
// list selects every configured account.
type BatchRequest struct {
	ArticlePaths []string
	Accounts     []int
	CoverPath    string
}

// BatchItem is the outcome of one article on one account.
type BatchItem struct {
	ArticlePath string
	Account     string
	AppIDSuffix string
	Outcome     Outcome
}

// Succeeded reports whether the article reached the account in some form.
func (i BatchItem) Succeeded() bool {
	return i.Outcome.Result.Status.Succeeded()
}

// BatchSummary reports a whole run.
type BatchSummary struct {
	RunID     string
	Succeeded int
	Failed    int
	Items     []BatchItem
}

// PublishBatch publishes every article to every selected account, running up
// to Concurrency orchestrations at once. Account indexes out of range are
// skipped. An unreadable article counts as one failure per selected account.
// Every item is written to the history; a history write failure is logged and
// does not fail the run.
func (s *PublishService) PublishBatch(ctx context.Context, req BatchRequest) (BatchSummary, error) {
	runID := s.deps.NewRunID()
	logger := s.deps.Logger.With("run_id", runID)

	if len(req.ArticlePaths) == 0 {
		return BatchSummary{RunID: runID}, fmt.Errorf("publish batch: %w: no articles given", model.ErrConfiguration)
	}
	accounts := s.selectAccounts(req.Accounts, logger)
	if len(accounts) == 0 {
		return BatchSummary{RunID: runID}, fmt.Errorf("publish batch: %w: no usable accounts", model.ErrConfiguration)
	}

	logger.Info("publish batch started", "articles", len(req.ArticlePaths), "accounts", len(accounts))

	items := make([]BatchItem, len(req.ArticlePaths)*len(accounts))

	var g errgroup.Group
	g.SetLimit(s.deps.Concurrency)

	for ai, path := range req.ArticlePaths {
		article, loadErr := s.deps.Loader.Load(path)
		if loadErr != nil {
			logger.Error("article unreadable", "article", path, "error", loadErr)
		}

		for ci, cred := range accounts {
			idx := ai*len(accounts) + ci
			g.Go(func() error {
				var out Outcome
				if loadErr != nil {
					out = articleFailure(loadErr)
				} else {
					out = s.publishOne(ctx, cred, article, req.CoverPath, logger)
				}
				item := BatchItem{
					ArticlePath: path,
					Account:     cred.Label(),
					AppIDSuffix: cred.MaskedAppID(),
					Outcome:     out,
				}
				items[idx] = item
				s.record(ctx, runID, item, logger)
				return nil
			})
		}
	}
	_ = g.Wait()

	summary := BatchSummary{RunID: runID, Items: items}
	for _, item := range items {
		if item.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	logger.Info("publish batch finished", "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

func (s *PublishService) publishOne(
	ctx context.Context,
	cred model.Credential,
	article model.Article,
	coverPath string,
	logger *slog.Logger,
) Outcome {
	platform, err := s.deps.Registry.For(cred)
	if err != nil {
		out := articleFailure(err)
		out.Kind = model.FailureConfiguration
		out.Class = Classify(err)
		out.Message = "account client unavailable"
		return out
	}

	deps := s.deps.Orchestrator
	deps.Platform = platform
	deps.Logger = logger

	return NewOrchestrator(deps).Publish(ctx, Request{
		Credential:  cred,
		ArticlePath: article.Path,
		Title:       article.Title,
		Digest:      article.Digest,
		Body:        article.HTML,
		CoverPath:   coverPath,
	})
}

func (s *PublishService) selectAccounts(indexes []int, logger *slog.Logger) []model.Credential {
	if len(indexes) == 0 {
		return s.deps.Accounts
	}

	seen := make(map[int]bool, len(indexes))
	selected := make([]model.Credential, 0, len(indexes))
	for _, i := range indexes {
		if i < 0 || i >= len(s.deps.Accounts) {
			logger.Warn("account index out of range, skipping", "index", i, "accounts", len(s.deps.Accounts))
			continue
		}
		if seen[i] {
			continue
		}
		seen[i] = true
		selected = append(selected, s.deps.Accounts[i])
	}
	return selected
}

func (s *PublishService) record(ctx context.Context, runID string, item BatchItem, logger *slog.Logger) {
	if s.deps.History == nil {
		return
	}

	out := item.Outcome
	rec := model.PublishRecord{
		RunID:       runID,
		ArticlePath: item.ArticlePath,
		Account:     item.Account,
		AppIDSuffix: item.AppIDSuffix,
		Status:      out.Result.Status,
		PublishID:   out.Result.PublishID,
		URL:         out.Result.URL,
		Success:     item.Succeeded(),
		Kind:        out.Kind,
		Message:     recordMessage(out),
		CreatedAt:   out.Result.PublishedAt,
	}

	// The run context may already be cancelled; the outcome is still worth keeping.
	if _, err := s.deps.History.Record(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("failed to record publish history", "article", item.ArticlePath, "error", err)
	}
}

func recordMessage(out Outcome) string {
	parts := make([]string, 0, 2)
	if out.Message != "" {
		parts = append(parts, out.Message)
	}
	if out.PlatformMessage != "" {
		parts = append(parts, out.PlatformMessage)
	} else if out.Err != nil {
		parts = append(parts, out.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func articleFailure(err error) Outcome {
	return Outcome{
		Result: model.PublishResult{
			Status:   model.PublishStatusFailed,
			Platform: model.PlatformName,
		},
		Kind:    model.FailureArticle,
		Class:   Classify(err),
		Message: "article could not be read",
		Err:     err,
	}
}

// History returns the records of one article, or the most recent records of
// all articles when articlePath is empty.
func (s *PublishService) History(ctx context.Context, articlePath string, limit int) ([]model.PublishRecord, error) {
	if articlePath == "" {
		return s.deps.History.ListRecent(ctx, limit)
	}

	records, err := s.deps.History.ListByArticle(ctx, articlePath)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ArticleStatus summarises an article's history.
func (s *PublishService) ArticleStatus(ctx context.Context, articlePath string) (model.ArticleStatus, error) {
	return s.deps.History.LatestStatus(ctx, articlePath)
}

// AccountCheck is the result of validating one account's credential.
type AccountCheck struct {
	Account     string
	AppIDSuffix string
	Tier        model.VerificationTier
}

// CheckAccount exchanges a token for the account at index and fetches its
// verification tier.
func (s *PublishService) CheckAccount(ctx context.Context, index int) (AccountCheck, error) {
	if index < 0 || index >= len(s.deps.Accounts) {
		return AccountCheck{}, fmt.Errorf("check account %d: %w: %d accounts configured",
			index, model.ErrConfiguration, len(s.deps.Accounts))
	}
	cred := s.deps.Accounts[index]

	platform, err := s.deps.Registry.For(cred)
	if err != nil {
		return AccountCheck{}, err
	}
	if _, err := platform.Token(ctx); err != nil {
		return AccountCheck{}, fmt.Errorf("check account %s: %w", cred.Label(), err)
	}
	tier, err := platform.FetchVerificationTier(ctx)
	if err != nil {
		return AccountCheck{}, fmt.Errorf("check account %s: fetch tier: %w", cred.Label(), err)
	}

	return AccountCheck{
		Account:     cred.Label(),
		AppIDSuffix: cred.MaskedAppID(),
		Tier:        tier,
	}, nil
}
