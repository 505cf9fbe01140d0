package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/iniwap/AIWriteX/internal/application"
	"github.com/iniwap/AIWriteX/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type errorResponse struct {
	Error string `json:"error"`
}

// PublishRequest is the JSON body of the publish endpoint. Accounts holds
// zero-based account indexes; empty means every configured account.
type PublishRequest struct {
	Articles []string `json:"articles"`
	Accounts []int    `json:"accounts"`
	Cover    string   `json:"cover"`
}

// BatchResponse is the JSON representation of a publish batch.
type BatchResponse struct {
	RunID     string              `json:"run_id"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Items     []BatchItemResponse `json:"items"`
}

// BatchItemResponse is one article on one account.
type BatchItemResponse struct {
	Article         string `json:"article"`
	Account         string `json:"account"`
	AppIDSuffix     string `json:"appid_suffix"`
	Success         bool   `json:"success"`
	Status          string `json:"status"`
	PublishID       string `json:"publish_id"`
	URL             string `json:"url"`
	PublishedAt     string `json:"published_at,omitempty"`
	Platform        string `json:"platform"`
	Stage           string `json:"stage"`
	Tier            string `json:"tier"`
	Kind            string `json:"kind,omitempty"`
	Class           string `json:"error_class,omitempty"`
	Message         string `json:"message"`
	PlatformMessage string `json:"platform_message,omitempty"`
	DraftMediaID    string `json:"draft_media_id,omitempty"`
}

// PublishRecordResponse is the JSON representation of a history row.
type PublishRecordResponse struct {
	ID          int64  `json:"id"`
	RunID       string `json:"run_id"`
	Article     string `json:"article"`
	Account     string `json:"account"`
	AppIDSuffix string `json:"appid_suffix"`
	Status      string `json:"status"`
	PublishID   string `json:"publish_id"`
	URL         string `json:"url"`
	Success     bool   `json:"success"`
	Kind        string `json:"kind,omitempty"`
	Message     string `json:"message"`
	CreatedAt   string `json:"created_at"`
}

// ArticleStatusResponse is the JSON representation of an article's status.
type ArticleStatusResponse struct {
	Article string `json:"article"`
	Status  string `json:"status"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toBatchResponse(s application.BatchSummary) BatchResponse {
	items := make([]BatchItemResponse, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, toBatchItemResponse(item))
	}
	return BatchResponse{
		RunID:     s.RunID,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Items:     items,
	}
}

func toBatchItemResponse(item application.BatchItem) BatchItemResponse {
	out := item.Outcome
	resp := BatchItemResponse{
		Article:         item.ArticlePath,
		Account:         item.Account,
		AppIDSuffix:     item.AppIDSuffix,
		Success:         item.Succeeded(),
		Status:          string(out.Result.Status),
		PublishID:       out.Result.PublishID,
		URL:             out.Result.URL,
		Platform:        out.Result.Platform,
		Stage:           string(out.Stage),
		Tier:            out.Tier.String(),
		Kind:            string(out.Kind),
		Message:         out.Message,
		PlatformMessage: out.PlatformMessage,
		DraftMediaID:    out.DraftMediaID,
	}
	if out.Class != model.ClassNone {
		resp.Class = string(out.Class)
	}
	if !out.Result.PublishedAt.IsZero() {
		resp.PublishedAt = out.Result.PublishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toPublishRecordResponse(rec model.PublishRecord) PublishRecordResponse {
	return PublishRecordResponse{
		ID:          rec.ID,
		RunID:       rec.RunID,
		Article:     rec.ArticlePath,
		Account:     rec.Account,
		AppIDSuffix: rec.AppIDSuffix,
		Status:      string(rec.Status),
		PublishID:   rec.PublishID,
		URL:         rec.URL,
		Success:     rec.Success,
		Kind:        string(rec.Kind),
		Message:     rec.Message,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
