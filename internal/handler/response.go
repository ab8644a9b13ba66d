package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/postrelay/internal/middleware"
	"github.com/hitoshi/postrelay/internal/model"
)

// facebookSuccessResponse は POST /api/facebook/post の成功レスポンス。
type facebookSuccessResponse struct {
	Success       bool             `json:"success"`
	PostID        string           `json:"post_id"`
	PostURL       string           `json:"post_url"`
	Platform      model.Platform   `json:"platform"`
	EndpointUsed  string           `json:"endpoint_used"`
	ImageUploaded bool             `json:"image_uploaded"`
	ImageInfo     *model.ImageInfo `json:"image_info,omitempty"`
}

// threadsSuccessResponse は POST /api/threads/post の成功レスポンス。
type threadsSuccessResponse struct {
	Success          bool           `json:"success"`
	PostID           string         `json:"post_id"`
	PostURL          string         `json:"post_url"`
	Platform         model.Platform `json:"platform"`
	MediaContainerID string         `json:"media_container_id"`
	Character        string         `json:"character"`
}

// publishErrorResponse は投稿失敗時の500レスポンス。
// 外部APIのerrorオブジェクトはプラットフォームごとのフィールド名で返す。
type publishErrorResponse struct {
	Error         string          `json:"error"`
	Message       string          `json:"message"`
	FacebookError json.RawMessage `json:"facebookError,omitempty"`
	ThreadsError  json.RawMessage `json:"threadsError,omitempty"`
}

// writeValidationError は400の検証エラーレスポンスを書き込む。
func writeValidationError(w http.ResponseWriter, verr *model.ValidationError) {
	middleware.WriteJSON(w, http.StatusBadRequest, middleware.ErrorResponseBody{
		Error: verr.Message,
		Field: verr.Field,
	})
}

// writePublishError は投稿パイプラインのエラーを500レスポンスに変換する。
// 外部APIエラーの場合はerror.messageと元のerrorオブジェクトを含める。
func writePublishError(w http.ResponseWriter, platform model.Platform, err error) {
	body := publishErrorResponse{
		Error:   "Failed to post to " + string(platform),
		Message: publishErrorMessage(err),
	}

	var upstream *model.UpstreamPublishError
	if errors.As(err, &upstream) && len(upstream.Raw) > 0 {
		switch platform {
		case model.PlatformThreads:
			body.ThreadsError = upstream.Raw
		default:
			body.FacebookError = upstream.Raw
		}
	}

	middleware.WriteJSON(w, http.StatusInternalServerError, body)
}

// publishErrorMessage は呼び出し元に返すエラーメッセージを決定する。
func publishErrorMessage(err error) string {
	var (
		upstream *model.UpstreamPublishError
		imgErr   *model.ImageError
	)
	switch {
	case errors.As(err, &upstream):
		return upstream.Message
	case errors.As(err, &imgErr):
		return imgErr.Error()
	default:
		return err.Error()
	}
}
