package image

import (
	"bytes"
	"mime"
	"strings"

	"golang.org/x/net/html"
)

// isHTMLResponse はContent-TypeがHTMLかを判定する。
// Google Driveは共有設定やクォータ超過時に画像の代わりにHTMLページを返す。
func isHTMLResponse(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return strings.Contains(strings.ToLower(mediaType), "html")
}

// interstitialTitle はHTMLページの<title>を返す。見つからない場合は空文字を返す。
func interstitialTitle(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				return ""
			}
		}
	}
}
