// Package image は投稿に添付する画像の取得と検証を提供する。
// Google Driveの公開URLからのダウンロードと、base64ペイロードのデコードに対応する。
package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/postrelay/internal/model"
)

const (
	// MinImageSize はこれ未満のデータを画像とみなさない下限（HTMLの中間ページ対策）。
	MinImageSize = 100
	// MaxImageSize はFacebookのアップロード上限（10MiB）。
	MaxImageSize = 10 * 1024 * 1024
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Acquirer はリクエストで指定された画像を取得し、サイズとContent-Typeを確定する。
type Acquirer struct {
	ssrfGuard    SSRFValidator
	httpClient   *http.Client
	driveBaseURL string
	timeout      time.Duration
	logger       *slog.Logger
}

// NewAcquirer はAcquirerの新しいインスタンスを生成する。
// ssrfGuardがnilの場合はSSRF検証を行わない通常のHTTPクライアントを使う。
func NewAcquirer(ssrfGuard SSRFValidator, driveBaseURL string, timeout time.Duration, logger *slog.Logger) *Acquirer {
	a := &Acquirer{
		ssrfGuard:    ssrfGuard,
		driveBaseURL: strings.TrimRight(driveBaseURL, "/"),
		timeout:      timeout,
		logger:       logger,
	}
	a.httpClient = a.newHTTPClient()
	return a
}

// WrapTransport はダウンロードに使うHTTPクライアントのTransportを差し替える。
// トレーシングの計装に使う。
func (a *Acquirer) WrapTransport(wrap func(http.RoundTripper) http.RoundTripper) {
	a.httpClient.Transport = wrap(a.httpClient.Transport)
}

// Acquire はリクエストの画像取得元に応じて画像を取得する。
// 画像が指定されていない場合はnilを返す。
func (a *Acquirer) Acquire(ctx context.Context, req *model.PostRequest) (*model.Image, error) {
	switch req.ImageSource() {
	case model.ImageSourceDrive:
		return a.FromDrive(ctx, *req.DriveFile)
	case model.ImageSourceInline:
		return a.FromInline(*req.InlineImage)
	default:
		return nil, nil
	}
}

// DriveDownloadURL はGoogle Driveファイルの公開ダウンロードURLを返す。
func (a *Acquirer) DriveDownloadURL(fileID string) string {
	q := url.Values{}
	q.Set("export", "download")
	q.Set("id", fileID)
	return a.driveBaseURL + "/uc?" + q.Encode()
}

// FromDrive はGoogle Driveの公開URLから画像をダウンロードする。
// 100バイト未満の応答やHTMLページは画像ではないものとしてエラーにする。
func (a *Acquirer) FromDrive(ctx context.Context, file model.DriveFile) (*model.Image, error) {
	downloadURL := a.DriveDownloadURL(file.ID)

	if a.ssrfGuard != nil {
		if err := a.ssrfGuard.ValidateURL(downloadURL); err != nil {
			return nil, model.NewImageFetchError("Failed to download image from Google Drive", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, model.NewImageFetchError("Failed to download image from Google Drive", err)
	}

	a.logger.Info("Google Driveから画像をダウンロードします",
		slog.String("file_id", file.ID),
		slog.String("file_name", file.Name),
	)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("Google Driveからのダウンロードに失敗しました",
			slog.String("file_id", file.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewImageFetchError("Failed to download image from Google Drive", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.logger.Error("Google Driveがエラーステータスを返しました",
			slog.String("file_id", file.ID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewImageFetchError(
			fmt.Sprintf("Failed to download image from Google Drive: status %d", resp.StatusCode), nil)
	}

	// 上限+1バイトまで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, model.NewImageFetchError("Failed to read image from Google Drive", err)
	}

	if isHTMLResponse(resp.Header.Get("Content-Type")) {
		title := interstitialTitle(data)
		a.logger.Warn("Google Driveが画像ではなくHTMLページを返しました",
			slog.String("file_id", file.ID),
			slog.String("page_title", title),
		)
		msg := "Failed to download image from Google Drive: received an HTML page instead of image data"
		if title != "" {
			msg = fmt.Sprintf("%s (%s)", msg, title)
		}
		return nil, model.NewImageFetchError(msg, nil)
	}

	if err := checkSize(len(data), true); err != nil {
		a.logger.Error("ダウンロードした画像のサイズが不正です",
			slog.String("file_id", file.ID),
			slog.Int("size", len(data)),
		)
		return nil, err
	}

	contentType := ResolveContentType(file.MimeType)
	img := &model.Image{
		Data:        data,
		Filename:    ResolveFilename(file.Name, contentType),
		ContentType: contentType,
	}

	a.logger.Info("画像のダウンロードが完了しました",
		slog.String("file_id", file.ID),
		slog.Int("size", len(data)),
		slog.String("content_type", contentType),
	)

	return img, nil
}

// FromInline はbase64でエンコードされた画像をデコードする。
// 先頭に data:image/...;base64, が付いている場合は取り除く。
func (a *Acquirer) FromInline(inline model.InlineImage) (*model.Image, error) {
	payload, prefixMime := StripDataURLPrefix(inline.Data)

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, model.NewImageDecodeError(err)
	}

	if err := checkSize(len(data), false); err != nil {
		return nil, err
	}

	mimeType := inline.MimeType
	if mimeType == "" {
		mimeType = prefixMime
	}
	contentType := ResolveContentType(mimeType)

	return &model.Image{
		Data:        data,
		Filename:    ResolveFilename(inline.Filename, contentType),
		ContentType: contentType,
	}, nil
}

// StripDataURLPrefix は data:image/<type>;base64, 形式の接頭辞を取り除く。
// 接頭辞があった場合はそのMIMEタイプも返す。
func StripDataURLPrefix(data string) (payload string, mimeType string) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, "data:image/") {
		return data, ""
	}

	header, rest, ok := strings.Cut(data, ";base64,")
	if !ok {
		return data, ""
	}
	return rest, strings.TrimPrefix(header, "data:")
}

// decodeBase64 はパディングありのbase64を優先し、失敗した場合はパディングなしを試す。
func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

// checkSize は画像サイズが下限と上限の範囲内かを検証する。
func checkSize(size int, fromDrive bool) error {
	if size < MinImageSize {
		return model.NewImageTooSmallError(size, fromDrive)
	}
	if size > MaxImageSize {
		return model.NewImageTooLargeError(size, MaxImageSize)
	}
	return nil
}

// newHTTPClient はダウンロード用のHTTPクライアントを生成する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (a *Acquirer) newHTTPClient() *http.Client {
	if a.ssrfGuard != nil {
		return a.ssrfGuard.NewSafeClient(a.timeout, MaxImageSize+1)
	}
	return &http.Client{Timeout: a.timeout}
}
