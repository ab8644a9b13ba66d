// Package graph はFacebook Graph APIとThreads APIの呼び出しを提供する。
// レスポンスの {id} を取り出し、非2xx応答はUpstreamPublishErrorに変換する。
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/postrelay/internal/model"
)

// maxResponseSize はAPIレスポンスとして読み取る最大バイト数。
const maxResponseSize = 1 << 20

// Observer はAPI呼び出しの結果を受け取る。メトリクス記録に使う。
type Observer interface {
	ObserveUpstream(platform model.Platform, operation string, status int, duration time.Duration)
}

// idResponse はGraph API / Threads APIの成功レスポンス。
type idResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id,omitempty"`
}

// errorResponse はGraph API / Threads APIのエラーレスポンス。
type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
}

// filePart はmultipartで送信するファイル。
type filePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

// caller はプラットフォーム共通のHTTP呼び出し処理。
type caller struct {
	httpClient *http.Client
	baseURL    string
	platform   model.Platform
	observer   Observer
	logger     *slog.Logger
}

func newCaller(httpClient *http.Client, baseURL string, platform model.Platform, observer Observer, logger *slog.Logger) caller {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return caller{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		platform:   platform,
		observer:   observer,
		logger:     logger,
	}
}

// postForm はapplication/x-www-form-urlencodedでPOSTする。
func (c *caller) postForm(ctx context.Context, operation, path string, form url.Values, timeout time.Duration) (*idResponse, error) {
	body := strings.NewReader(form.Encode())
	return c.do(ctx, operation, path, body, "application/x-www-form-urlencoded", timeout)
}

// postMultipart はmultipart/form-dataでPOSTする。
func (c *caller) postMultipart(ctx context.Context, operation, path string, fields url.Values, file filePart, timeout time.Duration) (*idResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for key, values := range fields {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				return nil, fmt.Errorf("multipartフィールドの書き込みに失敗しました: %w", err)
			}
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
	h.Set("Content-Type", file.contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("multipartパートの作成に失敗しました: %w", err)
	}
	if _, err := part.Write(file.data); err != nil {
		return nil, fmt.Errorf("画像データの書き込みに失敗しました: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("multipartの終端に失敗しました: %w", err)
	}

	return c.do(ctx, operation, path, &buf, w.FormDataContentType(), timeout)
}

func (c *caller) do(ctx context.Context, operation, path string, body io.Reader, contentType string, timeout time.Duration) (*idResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, c.transportError(operation, err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, 0, time.Since(start))
		c.logger.Error("APIの呼び出しに失敗しました",
			slog.String("platform", string(c.platform)),
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return nil, c.transportError(operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.observe(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, c.transportError(operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstreamErr := c.statusError(operation, resp.StatusCode, respBody)
		c.logger.Error("APIがエラーステータスを返しました",
			slog.String("platform", string(c.platform)),
			slog.String("operation", operation),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", upstreamErr.Message),
		)
		return nil, upstreamErr
	}

	var result idResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &model.UpstreamPublishError{
			Platform:   c.platform,
			Operation:  operation,
			HTTPStatus: resp.StatusCode,
			Message:    "invalid JSON response: " + err.Error(),
			Err:        err,
		}
	}
	if result.ID == "" && result.PostID == "" {
		return nil, &model.UpstreamPublishError{
			Platform:   c.platform,
			Operation:  operation,
			HTTPStatus: resp.StatusCode,
			Message:    "response does not contain an id",
		}
	}

	c.logger.Debug("APIの呼び出しに成功しました",
		slog.String("platform", string(c.platform)),
		slog.String("operation", operation),
		slog.String("id", result.ID),
	)

	return &result, nil
}

// statusError は非2xxレスポンスをUpstreamPublishErrorに変換する。
// error.message があればそれを、なければステータス文字列をメッセージにする。
func (c *caller) statusError(operation string, status int, body []byte) *model.UpstreamPublishError {
	e := &model.UpstreamPublishError{
		Platform:   c.platform,
		Operation:  operation,
		HTTPStatus: status,
		Message:    http.StatusText(status),
	}

	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || len(er.Error) == 0 || string(er.Error) == "null" {
		return e
	}
	e.Raw = er.Error

	var eb errorBody
	if err := json.Unmarshal(er.Error, &eb); err == nil && eb.Message != "" {
		e.Message = eb.Message
	} else {
		// "error": "..." 形式
		var s string
		if err := json.Unmarshal(er.Error, &s); err == nil && s != "" {
			e.Message = s
		}
	}
	return e
}

func (c *caller) transportError(operation string, err error) *model.UpstreamPublishError {
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out: " + msg
	}
	return &model.UpstreamPublishError{
		Platform:  c.platform,
		Operation: operation,
		Message:   msg,
		Err:       err,
	}
}

func (c *caller) observe(operation string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(c.platform, operation, status, d)
	}
}
