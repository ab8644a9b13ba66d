package post

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/postrelay/internal/config"
	"github.com/hitoshi/postrelay/internal/model"
)

// FacebookPostBody は POST /api/facebook/post のリクエストボディ。
type FacebookPostBody struct {
	Content           string             `json:"content" validate:"required"`
	Hashtags          []string           `json:"hashtags,omitempty"`
	PageID            string             `json:"pageId,omitempty"`
	GoogleDriveFile   *model.DriveFile   `json:"googleDriveFile,omitempty"`
	Image             *model.InlineImage `json:"image,omitempty"`
	FacebookEndpoint  string             `json:"facebookEndpoint,omitempty"`
	UsePhotosEndpoint bool               `json:"usePhotosEndpoint,omitempty"`
}

// RequestedEndpoint は呼び出し側が要求したエンドポイント名を返す。
// facebookEndpointが優先され、なければusePhotosEndpointから判断する。
func (b *FacebookPostBody) RequestedEndpoint() string {
	if b.FacebookEndpoint != "" {
		return b.FacebookEndpoint
	}
	if b.UsePhotosEndpoint {
		return string(model.EndpointPhotos)
	}
	return string(model.EndpointFeed)
}

// ThreadsImageFile はThreads投稿で参照するGoogle Driveファイル。
type ThreadsImageFile struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ThreadsPostBody は POST /api/threads/post のリクエストボディ。
// フィールドの宣言順が検証順になる。
type ThreadsPostBody struct {
	CharacterName string            `json:"characterName" validate:"required"`
	Content       string            `json:"content" validate:"required"`
	Hashtags      []string          `json:"hashtags,omitempty"`
	ImageFile     *ThreadsImageFile `json:"imageFile" validate:"required"`
}

// fieldLabels はJSONフィールドパスからエラーメッセージ用の表示名への対応表。
var fieldLabels = map[string]string{
	"content":       "Content",
	"characterName": "Character name",
	"imageFile":     "Image file ID",
	"imageFile.id":  "Image file ID",
}

// validate は構造体検証器。スレッドセーフでキャッシュを持つため共有する。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーのフィールド名にJSONタグ名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseBearerToken はAuthorizationヘッダーの値からトークンを取り出す。
func ParseBearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// ValidateFacebook はFacebook投稿リクエストを検証してPostRequestを組み立てる。
// 必須項目は content → accessToken → pageId の順に検証し、最初に欠けた項目を
// ValidationErrorとして返す。pageIdはリクエスト値がなければdefaultPageIDを使う。
func ValidateFacebook(body *FacebookPostBody, token, defaultPageID string, routing config.ImageRouting) (*model.PostRequest, error) {
	if err := validateStruct(body); err != nil {
		return nil, err
	}

	if token == "" {
		return nil, model.NewMissingFieldError("accessToken", "Access token")
	}

	pageID := body.PageID
	if pageID == "" {
		pageID = defaultPageID
	}
	if pageID == "" {
		return nil, &model.ValidationError{
			Field:   "pageId",
			Message: "Page ID is required (either in request or environment)",
		}
	}

	req := &model.PostRequest{
		Content:     body.Content,
		Hashtags:    body.Hashtags,
		PageID:      pageID,
		DriveFile:   body.GoogleDriveFile,
		InlineImage: body.Image,
	}
	req.TargetEndpoint = ResolveEndpoint(body, req.ImageSource() != model.ImageSourceNone, routing)

	return req, nil
}

// ResolveEndpoint は画像の有無と要求内容から投稿先エンドポイントを決定する。
//
//	explicit: 画像があり、かつ photos が要求された場合のみ photos
//	auto:     画像があれば photos（facebookEndpoint=feed の明示指定を除く）
//
// いずれの方式でも画像がなければ feed になる。
func ResolveEndpoint(body *FacebookPostBody, hasImage bool, routing config.ImageRouting) model.Endpoint {
	if !hasImage {
		return model.EndpointFeed
	}

	switch routing {
	case config.RoutingAuto:
		if body.FacebookEndpoint == string(model.EndpointFeed) {
			return model.EndpointFeed
		}
		return model.EndpointPhotos
	default:
		if body.FacebookEndpoint == string(model.EndpointPhotos) || body.UsePhotosEndpoint {
			return model.EndpointPhotos
		}
		return model.EndpointFeed
	}
}

// ValidateThreads はThreads投稿リクエストを検証する。
// characterName → content → imageFile.id → accessToken の順に検証する。
func ValidateThreads(body *ThreadsPostBody, token string) (*model.ThreadsPostRequest, error) {
	if err := validateStruct(body); err != nil {
		return nil, err
	}

	if token == "" {
		return nil, model.NewMissingFieldError("accessToken", "Access token")
	}

	return &model.ThreadsPostRequest{
		CharacterName: body.CharacterName,
		Content:       body.Content,
		Hashtags:      body.Hashtags,
		ImageFile: model.DriveFile{
			ID:       body.ImageFile.ID,
			Name:     body.ImageFile.Name,
			MimeType: body.ImageFile.MimeType,
		},
	}, nil
}

// validateStruct はvalidateタグによる検証を行い、最初の違反をValidationErrorに変換する。
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	field := fieldPath(verrs[0])
	label, ok := fieldLabels[field]
	if !ok {
		label = field
	}
	return model.NewMissingFieldError(field, label)
}

// fieldPath は "FacebookPostBody.content" のような名前空間から先頭の構造体名を除いたパスを返す。
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
