package wechat

import (
	"context"
	"fmt"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

// MenuButtonName is the label of the single menu entry pointing at the latest article.
const MenuButtonName = "最新文章"

type menuButton struct {
	Type string `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CreateMenu replaces the account's custom menu with one "view" button.
func (c *Client) CreateMenu(ctx context.Context, articleURL string) error {
	body := map[string][]menuButton{
		"button": {{Type: "view", Name: MenuButtonName, URL: articleURL}},
	}
	return c.postJSON(ctx, "create_menu", "menu/create", body, nil)
}

type massFilter struct {
	IsToAll bool `json:"is_to_all"`
	TagID   int  `json:"tag_id,omitempty"`
}

type massRequest struct {
	Filter            massFilter        `json:"filter"`
	MPNews            map[string]string `json:"mpnews"`
	MsgType           string            `json:"msgtype"`
	SendIgnoreReprint int               `json:"send_ignore_reprint"`
}

// SendAll broadcasts a listed news item to all followers or to one tag.
// A zero tag without ToAll is a configuration error and no request is made.
func (c *Client) SendAll(ctx context.Context, mediaID string, settings model.BroadcastSettings) error {
	const op = "send_all"

	filter := massFilter{IsToAll: true}
	if !settings.ToAll {
		if settings.TagID == 0 {
			return fmt.Errorf("%s: %w: tag_id must be set when not sending to all", op, model.ErrConfiguration)
		}
		filter = massFilter{IsToAll: false, TagID: settings.TagID}
	}

	body := massRequest{
		Filter:            filter,
		MPNews:            map[string]string{"media_id": mediaID},
		MsgType:           "mpnews",
		SendIgnoreReprint: 1,
	}
	return c.postJSON(ctx, op, "message/mass/sendall", body, nil)
}
