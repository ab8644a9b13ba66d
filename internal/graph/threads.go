package graph

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/postrelay/internal/model"
)

// Threads APIの操作名。
const (
	OperationThreadsContainer = "threads"
	OperationThreadsPublish   = "threads_publish"
)

// ThreadsClient はThreads APIの投稿クライアント。
// メディアコンテナを作成してから公開する2段階で投稿する。
type ThreadsClient struct {
	caller
	userID  string
	timeout time.Duration
}

// NewThreadsClient はThreadsClientの新しいインスタンスを生成する。
func NewThreadsClient(httpClient *http.Client, baseURL, userID string, timeout time.Duration, observer Observer, logger *slog.Logger) *ThreadsClient {
	return &ThreadsClient{
		caller:  newCaller(httpClient, baseURL, model.PlatformThreads, observer, logger),
		userID:  userID,
		timeout: timeout,
	}
}

// CreateImageContainer は画像付きのメディアコンテナを作成し、コンテナIDを返す。
func (c *ThreadsClient) CreateImageContainer(ctx context.Context, token, imageURL, text string) (string, error) {
	form := url.Values{}
	form.Set("media_type", "IMAGE")
	form.Set("image_url", imageURL)
	form.Set("text", text)
	form.Set("access_token", token)

	c.logger.Info("Threadsのメディアコンテナを作成します",
		slog.String("user_id", c.userID),
	)

	resp, err := c.postForm(ctx, OperationThreadsContainer, "/"+url.PathEscape(c.userID)+"/threads", form, c.timeout)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// PublishContainer はメディアコンテナを公開し、投稿IDを返す。
func (c *ThreadsClient) PublishContainer(ctx context.Context, token, creationID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", creationID)
	form.Set("access_token", token)

	c.logger.Info("Threadsのメディアコンテナを公開します",
		slog.String("creation_id", creationID),
	)

	resp, err := c.postForm(ctx, OperationThreadsPublish, "/"+url.PathEscape(c.userID)+"/threads_publish", form, c.timeout)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ThreadsPostURL はThreads投稿の公開URLを返す。
func ThreadsPostURL(characterName, postID string) string {
	return "https://threads.net/@" + strings.ToLower(characterName) + "/post/" + postID
}
