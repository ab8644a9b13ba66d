// Package post は投稿リクエストの検証と投稿本文の組み立てを提供する。
package post

import "strings"

// hashtagSeparator は本文とハッシュタグ列の区切り（空行）。
const hashtagSeparator = "\n\n"

// BuildPostText は本文とハッシュタグから最終的な投稿テキストを組み立てる。
// 各ハッシュタグは先頭に#がなければ1つ付与し、順序を保ったまま半角スペースで連結する。
// ハッシュタグが空の場合は本文をそのまま返す。
func BuildPostText(content string, hashtags []string) string {
	if len(hashtags) == 0 {
		return content
	}

	tags := make([]string, len(hashtags))
	for i, tag := range hashtags {
		tags[i] = NormalizeHashtag(tag)
	}

	return content + hashtagSeparator + strings.Join(tags, " ")
}

// NormalizeHashtag は先頭に#がないタグに#を付与する。
func NormalizeHashtag(tag string) string {
	if strings.HasPrefix(tag, "#") {
		return tag
	}
	return "#" + tag
}

// Preview はログ出力用に本文の先頭n文字（rune単位）を返す。
func Preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
