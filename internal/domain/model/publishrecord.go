package model

import "time"

// PublishRecord is one row of the publish history: a single article pushed to a
// single account.
type PublishRecord struct {
	ID          int64
	RunID       string
	ArticlePath string
	Account     string
	AppIDSuffix string
	Status      PublishStatus
	PublishID   string
	URL         string
	Success     bool
	Kind        FailureKind
	Message     string
	CreatedAt   time.Time
}

// ArticleStatus summarises an article's publish history.
type ArticleStatus string

const (
	ArticleStatusUnpublished ArticleStatus = "unpublished"
	ArticleStatusPublished   ArticleStatus = "published"
	ArticleStatusFailed      ArticleStatus = "failed"
)
