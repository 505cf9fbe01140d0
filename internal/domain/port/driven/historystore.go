package driven

import (
	"context"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

// HistoryStore defines the driven port for the publish history ledger.
type HistoryStore interface {
	// Record appends a publish record and returns its ID.
	Record(ctx context.Context, rec model.PublishRecord) (int64, error)
	// ListByArticle returns every record for an article, newest first.
	ListByArticle(ctx context.Context, articlePath string) ([]model.PublishRecord, error)
	// ListRecent returns up to limit records across all articles, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.PublishRecord, error)
	// LatestStatus summarises an article's history. Articles with no records are unpublished.
	LatestStatus(ctx context.Context, articlePath string) (model.ArticleStatus, error)
}

// ArticleLoader reads a local article file and converts it to HTML.
type ArticleLoader interface {
	Load(path string) (model.Article, error)
}
