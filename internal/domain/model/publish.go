package model

import "time"

// PlatformName is the Platform value of every PublishResult produced here.
const PlatformName = "wechat"

// PublishStatus is the terminal status reported to callers.
type PublishStatus string

const (
	PublishStatusDraft                 PublishStatus = "draft"
	PublishStatusPublished             PublishStatus = "published"
	PublishStatusManualPublishRequired PublishStatus = "manual_publish_required"
	PublishStatusPartialSuccess        PublishStatus = "partial_success"
	PublishStatusFailed                PublishStatus = "failed"
)

// Succeeded reports whether the article reached the platform in some form.
func (s PublishStatus) Succeeded() bool {
	switch s {
	case PublishStatusPublished, PublishStatusManualPublishRequired, PublishStatusPartialSuccess, PublishStatusDraft:
		return true
	}
	return false
}

// PublishResult is the immutable outcome of one publish attempt.
type PublishResult struct {
	PublishID   string
	Status      PublishStatus
	PublishedAt time.Time
	Platform    string
	URL         string
}

// VerificationTier selects between the free-publish path (unverified) and the
// listed-news + broadcast path (verified).
type VerificationTier int

const (
	TierUnverified VerificationTier = iota
	TierVerified
)

func (t VerificationTier) String() string {
	if t == TierVerified {
		return "verified"
	}
	return "unverified"
}

// Stage names a state of the publish state machine.
type Stage string

const (
	StageResolving           Stage = "resolving"
	StageCoverReady          Stage = "cover_ready"
	StageDraftCreated        Stage = "draft_created"
	StagePublishedUnverified Stage = "published_unverified"
	StageListedVerified      Stage = "listed_verified"
	StagePolledURL           Stage = "polled_url"
	StageBroadcast           Stage = "broadcast"
	StageTerminal            Stage = "terminal"
)
