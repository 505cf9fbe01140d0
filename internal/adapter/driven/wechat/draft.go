package wechat

import (
	"context"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

type draftArticle struct {
	Title              string `json:"title"`
	Author             string `json:"author"`
	Digest             string `json:"digest"`
	Content            string `json:"content"`
	ThumbMediaID       string `json:"thumb_media_id"`
	NeedOpenComment    int    `json:"need_open_comment"`
	OnlyFansCanComment int    `json:"only_fans_can_comment"`
}

type mediaIDResponse struct {
	MediaID string `json:"media_id"`
}

// AddDraft creates a single-article draft with comments open to everyone.
func (c *Client) AddDraft(ctx context.Context, draft model.ArticleDraft) (string, error) {
	const op = "add_draft"

	body := map[string][]draftArticle{
		"articles": {{
			Title:              model.TruncateRunes(draft.Title, model.MaxTitleRunes),
			Author:             draft.Author,
			Digest:             model.TruncateRunes(draft.Digest, model.MaxDigestRunes),
			Content:            draft.Content,
			ThumbMediaID:       draft.ThumbMediaID,
			NeedOpenComment:    1,
			OnlyFansCanComment: 0,
		}},
	}

	var resp mediaIDResponse
	if err := c.postJSON(ctx, op, "draft/add", body, &resp); err != nil {
		return "", err
	}
	if resp.MediaID == "" {
		return "", missing(op, "media_id")
	}
	return resp.MediaID, nil
}

type submitResponse struct {
	PublishID flexString `json:"publish_id"`
}

// SubmitPublish submits a draft for free-publish.
func (c *Client) SubmitPublish(ctx context.Context, mediaID string) (string, error) {
	const op = "submit_publish"

	var resp submitResponse
	if err := c.postJSON(ctx, op, "freepublish/submit", map[string]string{"media_id": mediaID}, &resp); err != nil {
		return "", err
	}
	if resp.PublishID == "" {
		return "", missing(op, "publish_id")
	}
	return string(resp.PublishID), nil
}

type publishStatusResponse struct {
	PublishID     flexString `json:"publish_id"`
	PublishStatus int        `json:"publish_status"`
	ArticleID     string     `json:"article_id"`
	ArticleDetail struct {
		Count int `json:"count"`
		Item  []struct {
			Idx        int    `json:"idx"`
			ArticleURL string `json:"article_url"`
		} `json:"item"`
	} `json:"article_detail"`
}

// GetArticleURL reads the state of a free-publish job. The URL is only known
// once the platform has assigned an article ID.
func (c *Client) GetArticleURL(ctx context.Context, publishID string) (string, error) {
	const op = "get_publish_status"

	var resp publishStatusResponse
	if err := c.postJSON(ctx, op, "freepublish/get", map[string]string{"publish_id": publishID}, &resp); err != nil {
		return "", err
	}
	if resp.ArticleID == "" || len(resp.ArticleDetail.Item) == 0 {
		c.logger.Debug("publish job pending", "publish_id", publishID, "publish_status", resp.PublishStatus)
		return "", nil
	}
	return resp.ArticleDetail.Item[0].ArticleURL, nil
}
