package wechat

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

type uploadResponse struct {
	MediaID string `json:"media_id"`
	URL     string `json:"url"`
}

// UploadImage uploads asset through the endpoint matching tier. Verified
// accounts get permanent media (no URL); unverified accounts get temporary
// material with a URL usable inside article bodies.
func (c *Client) UploadImage(ctx context.Context, asset model.ImageAsset, tier model.VerificationTier) (model.UploadedMedia, error) {
	const op = "upload_image"

	path := "material/add_material"
	if tier == model.TierVerified {
		path = "media/upload"
	}

	body, contentType, err := multipartImage(asset)
	if err != nil {
		return model.UploadedMedia{}, fmt.Errorf("%s: encode multipart: %w", op, err)
	}

	var resp uploadResponse
	err = c.call(ctx, op, func(token string) (*http.Request, error) {
		query := url.Values{"access_token": {token}, "type": {"image"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, query), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, &resp)
	if err != nil {
		c.metrics.IncUpload(false)
		return model.UploadedMedia{}, err
	}
	if resp.MediaID == "" {
		c.metrics.IncUpload(false)
		return model.UploadedMedia{}, missing(op, "media_id")
	}

	c.metrics.IncUpload(true)
	return model.UploadedMedia{MediaID: resp.MediaID, URL: resp.URL}, nil
}

// multipartImage encodes asset as the "media" form field.
func multipartImage(asset model.ImageAsset) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := asset.FileName
	if name == "" {
		name = "image.jpg"
	}
	mimeType := asset.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, name))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(asset.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

type newsArticle struct {
	ThumbMediaID string `json:"thumb_media_id"`
	Author       string `json:"author"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Digest       string `json:"digest"`
	ShowCoverPic int    `json:"show_cover_pic"`
}

// UploadNews creates a listed news item for mass sending.
func (c *Client) UploadNews(ctx context.Context, draft model.ArticleDraft) (string, error) {
	const op = "upload_news"

	body := map[string][]newsArticle{
		"articles": {{
			ThumbMediaID: draft.ThumbMediaID,
			Author:       draft.Author,
			Title:        model.TruncateRunes(draft.Title, model.MaxTitleRunes),
			Content:      draft.Content,
			Digest:       model.TruncateRunes(draft.Digest, model.MaxDigestRunes),
			ShowCoverPic: 1,
		}},
	}

	var resp mediaIDResponse
	if err := c.postJSON(ctx, op, "media/uploadnews", body, &resp); err != nil {
		return "", err
	}
	if resp.MediaID == "" {
		return "", missing(op, "media_id")
	}
	return resp.MediaID, nil
}
