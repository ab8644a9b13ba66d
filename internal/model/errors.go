package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ValidationError は必須入力が欠けている場合のエラー。
// 常に400として返却される。
type ValidationError struct {
	Field   string // 欠けているフィールド名（リクエストのJSON名）
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return e.Message
}

// NewMissingFieldError は必須フィールド欠落エラーを生成する。
func NewMissingFieldError(field, label string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("%s is required", label),
	}
}

// 画像パイプラインのエラー種別。errors.Isで判定できる。
var (
	ErrImageFetch    = errors.New("image fetch failed")
	ErrImageDecode   = errors.New("image decode failed")
	ErrImageTooSmall = errors.New("image too small")
	ErrImageTooLarge = errors.New("image too large")
)

// ImageError は画像の取得・デコード・サイズ検証の失敗を表す。
// Kindは上記のセンチネルエラーのいずれか。
type ImageError struct {
	Kind    error
	Message string
	Err     error
	// fetched はGoogle Driveからの取得結果がサイズ不足だった場合にtrueとなる。
	fetched bool
}

// Error はerrorインターフェースを実装する。
func (e *ImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap は原因エラーを返す。
func (e *ImageError) Unwrap() error {
	return e.Err
}

// Is はKindとの比較を可能にする。
// Driveの取得結果がサイズ不足の場合はErrImageFetchにも一致する。
func (e *ImageError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.fetched && target == ErrImageFetch
}

// NewImageFetchError は画像取得失敗エラーを生成する。
func NewImageFetchError(message string, err error) *ImageError {
	return &ImageError{Kind: ErrImageFetch, Message: message, Err: err}
}

// NewImageDecodeError はbase64デコード失敗エラーを生成する。
func NewImageDecodeError(err error) *ImageError {
	return &ImageError{Kind: ErrImageDecode, Message: "Failed to decode base64 image", Err: err}
}

// NewImageTooSmallError は画像サイズ不足エラーを生成する。
// fromDriveがtrueの場合、取得失敗としても扱われる。
func NewImageTooSmallError(size int, fromDrive bool) *ImageError {
	msg := fmt.Sprintf("Image too small: %d bytes", size)
	if fromDrive {
		msg = fmt.Sprintf("Failed to download image from Google Drive: downloaded image too small: %d bytes", size)
	}
	return &ImageError{Kind: ErrImageTooSmall, Message: msg, fetched: fromDrive}
}

// NewImageTooLargeError は画像サイズ超過エラーを生成する。
func NewImageTooLargeError(size int, limit int) *ImageError {
	return &ImageError{
		Kind:    ErrImageTooLarge,
		Message: fmt.Sprintf("Image file too large (%d bytes, max %d bytes)", size, limit),
	}
}

// UpstreamPublishError はFacebook/Threads APIの非2xx応答または通信失敗を表す。
type UpstreamPublishError struct {
	Platform   Platform
	Operation  string          // 呼び出したAPI操作（photos, feed, threads, threads_publish）
	HTTPStatus int             // 通信失敗の場合は0
	Message    string          // error.message、なければ通信エラーのメッセージ
	Raw        json.RawMessage // レスポンスのerrorオブジェクト。存在しない場合はnil
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamPublishError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s %s failed with status %d: %s", e.Platform, e.Operation, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Platform, e.Operation, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *UpstreamPublishError) Unwrap() error {
	return e.Err
}
