// Package publish は投稿リクエストをFacebook・Threadsへ中継するドメインロジックを提供する。
// 画像の取得、投稿テキストの組み立て、API呼び出しの順序制御を担う。
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/postrelay/internal/config"
	"github.com/hitoshi/postrelay/internal/graph"
	"github.com/hitoshi/postrelay/internal/metrics"
	"github.com/hitoshi/postrelay/internal/model"
	"github.com/hitoshi/postrelay/internal/post"
)

// endpoint_used の値
const (
	EndpointUsedFeed          = "feed"
	EndpointUsedPhotos        = "photos"
	EndpointUsedPhotosAndFeed = "photos+feed"
	endpointUsedThreads       = "threads"
)

// ImageAcquirer は画像取得のインターフェース。
type ImageAcquirer interface {
	Acquire(ctx context.Context, req *model.PostRequest) (*model.Image, error)
	FromDrive(ctx context.Context, file model.DriveFile) (*model.Image, error)
	DriveDownloadURL(fileID string) string
}

// FacebookAPI はFacebook Graph API呼び出しのインターフェース。
type FacebookAPI interface {
	UploadPhoto(ctx context.Context, pageID, token string, img *model.Image, message string, published bool) (*graph.PhotoResult, error)
	PublishFeed(ctx context.Context, pageID, token, message string, mediaFBIDs ...string) (string, error)
}

// ThreadsAPI はThreads API呼び出しのインターフェース。
type ThreadsAPI interface {
	CreateImageContainer(ctx context.Context, token, imageURL, text string) (string, error)
	PublishContainer(ctx context.Context, token, creationID string) (string, error)
}

// Service は投稿中継のサービス層。
type Service struct {
	images   ImageAcquirer
	facebook FacebookAPI
	threads  ThreadsAPI
	strategy config.FacebookPhotoStrategy
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	images ImageAcquirer,
	facebook FacebookAPI,
	threads ThreadsAPI,
	strategy config.FacebookPhotoStrategy,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		images:   images,
		facebook: facebook,
		threads:  threads,
		strategy: strategy,
		metrics:  collector,
		logger:   logger,
	}
}

// PublishFacebook はFacebookページに投稿する。
// 画像はAPI呼び出しより前に取得・検証し、失敗した場合はAPIを呼ばない。
// 画像付き投稿は設定された方式（photo_then_feed / direct_photo）に従う。
func (s *Service) PublishFacebook(ctx context.Context, req *model.PostRequest, token string) (*model.PublishResult, error) {
	message := post.BuildPostText(req.Content, req.Hashtags)

	var img *model.Image
	if req.TargetEndpoint == model.EndpointPhotos {
		var err error
		img, err = s.images.Acquire(ctx, req)
		if err != nil {
			s.recordFailure(model.PlatformFacebook, "image")
			return nil, fmt.Errorf("画像の取得に失敗しました: %w", err)
		}
		if img != nil {
			s.recordImage(req.ImageSource(), img)
		}
	}

	var (
		postID       string
		endpointUsed string
		err          error
	)
	switch {
	case img == nil:
		endpointUsed = EndpointUsedFeed
		postID, err = s.facebook.PublishFeed(ctx, req.PageID, token, message)
	case s.strategy == config.StrategyDirectPhoto:
		endpointUsed = EndpointUsedPhotos
		postID, err = s.publishDirectPhoto(ctx, req.PageID, token, message, img)
	default:
		endpointUsed = EndpointUsedPhotosAndFeed
		postID, err = s.publishPhotoThenFeed(ctx, req.PageID, token, message, img)
	}
	if err != nil {
		s.recordFailure(model.PlatformFacebook, "upstream")
		return nil, err
	}

	result := &model.PublishResult{
		PostID:        postID,
		PostURL:       graph.PostURL(postID),
		Platform:      model.PlatformFacebook,
		EndpointUsed:  endpointUsed,
		ImageUploaded: img != nil,
	}
	if img != nil {
		result.Image = img.Info()
	}

	s.logger.Info("Facebookへの投稿が完了しました",
		slog.String("post_id", postID),
		slog.String("endpoint_used", endpointUsed),
		slog.Bool("image_uploaded", result.ImageUploaded),
	)
	if s.metrics != nil {
		s.metrics.RecordPublishSuccess(model.PlatformFacebook, endpointUsed)
	}

	return result, nil
}

// publishDirectPhoto は /photos にmessage付きで直接投稿する。
// 応答にpost_idがあればそれを、なければ写真IDを投稿IDとする。
func (s *Service) publishDirectPhoto(ctx context.Context, pageID, token, message string, img *model.Image) (string, error) {
	photo, err := s.facebook.UploadPhoto(ctx, pageID, token, img, message, true)
	if err != nil {
		return "", err
	}
	if photo.PostID != "" {
		return photo.PostID, nil
	}
	return photo.ID, nil
}

// publishPhotoThenFeed は未公開写真をアップロードし、attached_mediaでフィードに投稿する。
// フィード投稿に失敗しても未公開写真は削除しない。
func (s *Service) publishPhotoThenFeed(ctx context.Context, pageID, token, message string, img *model.Image) (string, error) {
	photo, err := s.facebook.UploadPhoto(ctx, pageID, token, img, "", false)
	if err != nil {
		return "", err
	}

	postID, err := s.facebook.PublishFeed(ctx, pageID, token, message, photo.ID)
	if err != nil {
		s.logger.Warn("未公開写真のフィード投稿に失敗しました",
			slog.String("photo_id", photo.ID),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	return postID, nil
}

// PublishThreads はThreadsに画像付きで投稿する。
// Driveファイルが取得可能かを確認した後、公開ダウンロードURLでメディアコンテナを作成して公開する。
func (s *Service) PublishThreads(ctx context.Context, req *model.ThreadsPostRequest, token string) (*model.PublishResult, error) {
	img, err := s.images.FromDrive(ctx, req.ImageFile)
	if err != nil {
		s.recordFailure(model.PlatformThreads, "image")
		return nil, fmt.Errorf("画像の取得に失敗しました: %w", err)
	}
	s.recordImage(model.ImageSourceDrive, img)

	text := post.BuildPostText(req.Content, req.Hashtags)
	imageURL := s.images.DriveDownloadURL(req.ImageFile.ID)

	containerID, err := s.threads.CreateImageContainer(ctx, token, imageURL, text)
	if err != nil {
		s.recordFailure(model.PlatformThreads, "upstream")
		return nil, err
	}

	postID, err := s.threads.PublishContainer(ctx, token, containerID)
	if err != nil {
		s.recordFailure(model.PlatformThreads, "upstream")
		return nil, err
	}

	s.logger.Info("Threadsへの投稿が完了しました",
		slog.String("post_id", postID),
		slog.String("media_container_id", containerID),
		slog.String("character", req.CharacterName),
	)
	if s.metrics != nil {
		s.metrics.RecordPublishSuccess(model.PlatformThreads, endpointUsedThreads)
	}

	return &model.PublishResult{
		PostID:           postID,
		PostURL:          graph.ThreadsPostURL(req.CharacterName, postID),
		Platform:         model.PlatformThreads,
		EndpointUsed:     endpointUsedThreads,
		ImageUploaded:    true,
		Image:            img.Info(),
		MediaContainerID: containerID,
	}, nil
}

// FailureReason はエラーをメトリクス用の失敗理由に分類する。
func FailureReason(err error) string {
	var (
		valErr   *model.ValidationError
		imgErr   *model.ImageError
		upstream *model.UpstreamPublishError
	)
	switch {
	case errors.As(err, &valErr):
		return "validation"
	case errors.As(err, &imgErr):
		return "image"
	case errors.As(err, &upstream):
		return "upstream"
	default:
		return "internal"
	}
}

// RecordValidationFailure は検証エラーによる投稿失敗を記録する。
func (s *Service) RecordValidationFailure(platform model.Platform) {
	s.recordFailure(platform, "validation")
}

func (s *Service) recordFailure(platform model.Platform, reason string) {
	if s.metrics != nil {
		s.metrics.RecordPublishFailure(platform, reason)
	}
}

func (s *Service) recordImage(source model.ImageSource, img *model.Image) {
	if s.metrics == nil {
		return
	}
	label := "inline"
	if source == model.ImageSourceDrive {
		label = "drive"
	}
	s.metrics.RecordImageBytes(label, len(img.Data))
}
