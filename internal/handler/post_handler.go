package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/postrelay/internal/config"
	"github.com/hitoshi/postrelay/internal/middleware"
	"github.com/hitoshi/postrelay/internal/model"
	"github.com/hitoshi/postrelay/internal/post"
	"github.com/hitoshi/postrelay/internal/publish"
)

// contentPreviewLength はログに出力する本文の最大文字数。
const contentPreviewLength = 50

// PublishServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PublishServiceInterface interface {
	// PublishFacebook は検証済みリクエストをFacebookページに投稿する。
	PublishFacebook(ctx context.Context, req *model.PostRequest, token string) (*model.PublishResult, error)
	// PublishThreads は検証済みリクエストをThreadsに投稿する。
	PublishThreads(ctx context.Context, req *model.ThreadsPostRequest, token string) (*model.PublishResult, error)
	// RecordValidationFailure は検証エラーをメトリクスに記録する。
	RecordValidationFailure(platform model.Platform)
}

// PostHandlerConfig は投稿ハンドラーの設定。
type PostHandlerConfig struct {
	DefaultPageID  string
	ImageRouting   config.ImageRouting
	MaxRequestBody int64
}

// PostHandler はFacebook・Threads投稿のHTTPハンドラー。
type PostHandler struct {
	service PublishServiceInterface
	config  PostHandlerConfig
	logger  *slog.Logger
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PublishServiceInterface, cfg PostHandlerConfig, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		service: service,
		config:  cfg,
		logger:  logger,
	}
}

// PostToFacebook はFacebookページへの投稿を処理する。
// POST /api/facebook/post
func (h *PostHandler) PostToFacebook(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	var body post.FacebookPostBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	token := post.ParseBearerToken(r.Header.Get("Authorization"))

	logger.Info("Facebook投稿リクエストを受信しました",
		slog.String("content_preview", post.Preview(body.Content, contentPreviewLength)),
		slog.Any("hashtags", body.Hashtags),
		slog.String("page_id", body.PageID),
		slog.Bool("has_token", token != ""),
		slog.Bool("has_drive_file", body.GoogleDriveFile != nil),
		slog.Bool("has_inline_image", body.Image != nil),
		slog.String("requested_endpoint", body.RequestedEndpoint()),
	)

	req, err := post.ValidateFacebook(&body, token, h.config.DefaultPageID, h.config.ImageRouting)
	if err != nil {
		h.handleValidationError(w, logger, model.PlatformFacebook, err)
		return
	}

	logger.Info("投稿先を決定しました",
		slog.String("page_id", req.PageID),
		slog.String("target_endpoint", string(req.TargetEndpoint)),
	)

	result, err := h.service.PublishFacebook(r.Context(), req, token)
	if err != nil {
		logger.Error("Facebookへの投稿に失敗しました",
			slog.String("reason", publish.FailureReason(err)),
			slog.String("error", err.Error()),
		)
		writePublishError(w, model.PlatformFacebook, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, facebookSuccessResponse{
		Success:       true,
		PostID:        result.PostID,
		PostURL:       result.PostURL,
		Platform:      result.Platform,
		EndpointUsed:  result.EndpointUsed,
		ImageUploaded: result.ImageUploaded,
		ImageInfo:     result.Image,
	})
}

// PostToThreads はThreadsへの画像付き投稿を処理する。
// POST /api/threads/post
func (h *PostHandler) PostToThreads(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	var body post.ThreadsPostBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	token := post.ParseBearerToken(r.Header.Get("Authorization"))

	logger.Info("Threads投稿リクエストを受信しました",
		slog.String("character", body.CharacterName),
		slog.String("content_preview", post.Preview(body.Content, contentPreviewLength)),
		slog.Any("hashtags", body.Hashtags),
		slog.Bool("has_token", token != ""),
		slog.Bool("has_image_file", body.ImageFile != nil),
	)

	req, err := post.ValidateThreads(&body, token)
	if err != nil {
		h.handleValidationError(w, logger, model.PlatformThreads, err)
		return
	}

	result, err := h.service.PublishThreads(r.Context(), req, token)
	if err != nil {
		logger.Error("Threadsへの投稿に失敗しました",
			slog.String("reason", publish.FailureReason(err)),
			slog.String("error", err.Error()),
		)
		writePublishError(w, model.PlatformThreads, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, threadsSuccessResponse{
		Success:          true,
		PostID:           result.PostID,
		PostURL:          result.PostURL,
		Platform:         result.Platform,
		MediaContainerID: result.MediaContainerID,
		Character:        req.CharacterName,
	})
}

// decodeBody はリクエストボディをJSONとしてデコードする。
// 失敗した場合はエラーレスポンスを書き込み、falseを返す。
func (h *PostHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.config.MaxRequestBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxRequestBody)
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		h.requestLogger(r).Warn("リクエストボディのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// handleValidationError は検証エラーを400として返す。
func (h *PostHandler) handleValidationError(w http.ResponseWriter, logger *slog.Logger, platform model.Platform, err error) {
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		logger.Error("リクエストの検証中にエラーが発生しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	logger.Warn("リクエストの検証に失敗しました",
		slog.String("field", verr.Field),
		slog.String("error", verr.Message),
	)
	h.service.RecordValidationFailure(platform)
	writeValidationError(w, verr)
}

// requestLogger はリクエストIDを付与したロガーを返す。
func (h *PostHandler) requestLogger(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.logger.With(slog.String("request_id", id))
	}
	return h.logger
}
