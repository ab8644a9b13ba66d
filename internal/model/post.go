// Package model はドメインモデルを定義する。
package model

// Platform は投稿先のプラットフォームを表す。
type Platform string

const (
	// PlatformFacebook はFacebookページへの投稿を示す。
	PlatformFacebook Platform = "Facebook"
	// PlatformThreads はThreadsへの投稿を示す。
	PlatformThreads Platform = "Threads"
)

// Endpoint はFacebook Graph APIの投稿先エンドポイントを表す。
type Endpoint string

const (
	// EndpointFeed はテキスト投稿用の /feed エンドポイント。
	EndpointFeed Endpoint = "feed"
	// EndpointPhotos は画像アップロード用の /photos エンドポイント。
	EndpointPhotos Endpoint = "photos"
)

// DriveFile はGoogle Driveの公開ファイル参照を表す。
type DriveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// InlineImage はリクエストに直接埋め込まれたbase64画像を表す。
type InlineImage struct {
	Data     string `json:"data"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ImageSource は投稿に使う画像の取得元を表す。
type ImageSource int

const (
	// ImageSourceNone は画像なしを示す。
	ImageSourceNone ImageSource = iota
	// ImageSourceDrive はGoogle Driveから取得することを示す。
	ImageSourceDrive
	// ImageSourceInline はbase64ペイロードをデコードすることを示す。
	ImageSourceInline
)

// PostRequest は検証済みのFacebook投稿リクエスト。
// 1リクエストの処理中のみ存在し、永続化されない。
type PostRequest struct {
	Content        string
	Hashtags       []string
	PageID         string
	DriveFile      *DriveFile
	InlineImage    *InlineImage
	TargetEndpoint Endpoint
}

// ImageSource はリクエストの画像取得元を返す。
// DriveFileとInlineImageの両方がある場合はDriveFileを優先する。
func (r *PostRequest) ImageSource() ImageSource {
	switch {
	case r.DriveFile != nil && r.DriveFile.ID != "":
		return ImageSourceDrive
	case r.InlineImage != nil && r.InlineImage.Data != "":
		return ImageSourceInline
	default:
		return ImageSourceNone
	}
}

// ThreadsPostRequest は検証済みのThreads投稿リクエスト。
type ThreadsPostRequest struct {
	CharacterName string
	Content       string
	Hashtags      []string
	ImageFile     DriveFile
}

// Image は取得・検証済みの画像データ。
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Info はレスポンス用の画像メタ情報を返す。
func (img *Image) Info() *ImageInfo {
	return &ImageInfo{
		Filename:    img.Filename,
		Size:        len(img.Data),
		ContentType: img.ContentType,
	}
}

// ImageInfo はアップロードした画像のメタ情報。
type ImageInfo struct {
	Filename    string `json:"filename"`
	Size        int    `json:"size"`
	ContentType string `json:"contentType"`
}

// PublishResult は投稿成功時の結果。
type PublishResult struct {
	PostID           string
	PostURL          string
	Platform         Platform
	EndpointUsed     string
	ImageUploaded    bool
	Image            *ImageInfo
	MediaContainerID string
}
