package image

import (
	"path/filepath"
	"strings"
)

const defaultContentType = "image/jpeg"

// defaultBaseName は呼び出し側がファイル名を指定しなかった場合のファイル名。
const defaultBaseName = "image"

// recognizedExtensions はアップロード時にそのまま採用するファイル拡張子。
var recognizedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// extensionByType はContent-Typeに対応する拡張子。
var extensionByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ResolveContentType は指定されたMIMEタイプ文字列から部分一致でContent-Typeを決定する。
// png, gif, webp, jpeg/jpg の順に判定し、いずれにも一致しなければimage/jpegを返す。
func ResolveContentType(mimeType string) string {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "png"):
		return "image/png"
	case strings.Contains(m, "gif"):
		return "image/gif"
	case strings.Contains(m, "webp"):
		return "image/webp"
	case strings.Contains(m, "jpeg"), strings.Contains(m, "jpg"):
		return "image/jpeg"
	default:
		return defaultContentType
	}
}

// ResolveFilename はアップロードに使うファイル名を決定する。
// 指定名の拡張子が認識済みならそのまま使い、そうでなければContent-Typeに対応する拡張子を付ける。
func ResolveFilename(name, contentType string) string {
	ext := extensionByType[contentType]
	if ext == "" {
		ext = extensionByType[defaultContentType]
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return defaultBaseName + ext
	}

	if _, ok := recognizedExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return name
	}
	return name + ext
}
