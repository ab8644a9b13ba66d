package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/postrelay/internal/model"
)

// Facebook Graph APIの操作名。メトリクスとエラーに使う。
const (
	OperationPhotos = "photos"
	OperationFeed   = "feed"
)

// FacebookClient はFacebook Graph APIのページ投稿クライアント。
type FacebookClient struct {
	caller
	photoTimeout time.Duration
	feedTimeout  time.Duration
}

// NewFacebookClient はFacebookClientの新しいインスタンスを生成する。
// photoTimeoutは /photos、feedTimeoutは /feed の呼び出しごとのタイムアウト。
func NewFacebookClient(httpClient *http.Client, baseURL string, photoTimeout, feedTimeout time.Duration, observer Observer, logger *slog.Logger) *FacebookClient {
	return &FacebookClient{
		caller:       newCaller(httpClient, baseURL, model.PlatformFacebook, observer, logger),
		photoTimeout: photoTimeout,
		feedTimeout:  feedTimeout,
	}
}

// PhotoResult は /photos の応答。
type PhotoResult struct {
	// ID は写真オブジェクトのID。
	ID string
	// PostID は公開投稿として作成された場合の投稿ID。
	PostID string
}

// UploadPhoto は画像を /{pageID}/photos にmultipartでアップロードする。
// published=falseの場合は未公開写真として作成し、後でフィードに添付する。
// messageが空でなければキャプションとして送る。
func (c *FacebookClient) UploadPhoto(ctx context.Context, pageID, token string, img *model.Image, message string, published bool) (*PhotoResult, error) {
	fields := url.Values{}
	fields.Set("access_token", token)
	if message != "" {
		fields.Set("message", message)
	}
	if !published {
		fields.Set("published", "false")
	}

	c.logger.Info("Facebookに写真をアップロードします",
		slog.String("page_id", pageID),
		slog.String("filename", img.Filename),
		slog.Int("size", len(img.Data)),
		slog.Bool("published", published),
	)

	resp, err := c.postMultipart(ctx, OperationPhotos, "/"+url.PathEscape(pageID)+"/photos", fields, filePart{
		field:       "source",
		filename:    img.Filename,
		contentType: img.ContentType,
		data:        img.Data,
	}, c.photoTimeout)
	if err != nil {
		return nil, err
	}

	return &PhotoResult{ID: resp.ID, PostID: resp.PostID}, nil
}

// PublishFeed は /{pageID}/feed にテキスト投稿する。
// mediaFBIDsを指定した場合は attached_media[i] として添付する。
func (c *FacebookClient) PublishFeed(ctx context.Context, pageID, token, message string, mediaFBIDs ...string) (string, error) {
	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", token)
	for i, id := range mediaFBIDs {
		form.Set(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":%q}`, id))
	}

	c.logger.Info("Facebookのフィードに投稿します",
		slog.String("page_id", pageID),
		slog.Int("attached_media", len(mediaFBIDs)),
	)

	resp, err := c.postForm(ctx, OperationFeed, "/"+url.PathEscape(pageID)+"/feed", form, c.feedTimeout)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return resp.PostID, nil
	}
	return resp.ID, nil
}

// PostURL はFacebook投稿の公開URLを返す。
func PostURL(postID string) string {
	return "https://facebook.com/" + postID
}
