// Package lang 处理前端传入的语言标识，统一为 BCP-47 标签后再用于语音筛选。
package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// Language 前端练习页支持的一种语言。
type Language struct {
	Code   string `json:"code"`   // 前端使用的语言代码，如 english
	Name   string `json:"name"`   // 英文名称
	Native string `json:"native"` // 本地名称
	Tag    string `json:"tag"`    // 默认 BCP-47 标签
}

var supported = []Language{
	{Code: "english", Name: "English", Native: "English", Tag: "en-US"},
	{Code: "spanish", Name: "Spanish", Native: "Español", Tag: "es-ES"},
	{Code: "italian", Name: "Italian", Native: "Italiano", Tag: "it-IT"},
	{Code: "portuguese", Name: "Portuguese", Native: "Português", Tag: "pt-BR"},
	{Code: "german", Name: "German", Native: "Deutsch", Tag: "de-DE"},
	{Code: "french", Name: "French", Native: "Français", Tag: "fr-FR"},
	{Code: "japanese", Name: "Japanese", Native: "日本語", Tag: "ja-JP"},
	{Code: "chinese", Name: "Chinese", Native: "中文", Tag: "zh-CN"},
	{Code: "hindi", Name: "Hindi", Native: "हिन्दी", Tag: "hi-IN"},
	{Code: "arabic", Name: "Arabic", Native: "العربية", Tag: "ar-SA"},
}

// Supported 返回前端支持的练习语言列表（副本）。
func Supported() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Parse 将语言标识解析为 BCP-47 标签。
// 支持 en-US、en_US（POSIX 风格）以及前端的语言名称（english）。
// 无法识别时返回 language.Und 和 false。
func Parse(s string) (language.Tag, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Und, false
	}

	// 前端语言名称使用该语言的默认标签
	lower := strings.ToLower(s)
	for _, l := range supported {
		if l.Code == lower {
			return language.MustParse(l.Tag), true
		}
	}

	// POSIX locale：去掉编码后缀（en_US.UTF-8）并把下划线换成连字符
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")

	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// Normalize 返回规范化后的标签字符串，无法识别时原样返回去掉空白的输入。
func Normalize(s string) string {
	tag, ok := Parse(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return tag.String()
}

// Matches 判断语音的 locale 是否满足请求的语言。
// 基础语言必须相同；只有请求中显式写出地区时才比较地区。
// 请求为空或无法识别时视为不过滤。
func Matches(locale, requested string) bool {
	want, ok := Parse(requested)
	if !ok {
		return true
	}
	have, ok := Parse(locale)
	if !ok {
		return false
	}

	wantBase, _ := want.Base()
	haveBase, _ := have.Base()
	if wantBase != haveBase {
		return false
	}

	// 语言名称（english）只代表语言本身，不限定地区
	if isCode(requested) {
		return true
	}
	wantRegion, conf := want.Region()
	if conf != language.Exact {
		return true
	}
	haveRegion, _ := have.Region()
	return wantRegion == haveRegion
}

func isCode(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, l := range supported {
		if l.Code == lower {
			return true
		}
	}
	return false
}

// Base 返回基础语言代码，如 zh-CN -> zh。无法识别时返回空字符串。
func Base(s string) string {
	tag, ok := Parse(s)
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
