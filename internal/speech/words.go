package speech

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Validate 检查请求参数。maxTextLength <= 0 表示不限制文本长度。
func Validate(req Request, maxTextLength int) error {
	r := float64(req.Rate)
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, req.Rate)
	}
	if maxTextLength > 0 {
		if n := utf8.RuneCountInString(req.Text); n > maxTextLength {
			return fmt.Errorf("%w: %d 个字符，最多 %d", ErrTextTooLong, n, maxTextLength)
		}
	}
	return nil
}

// CountWords 返回以空白分隔的单词数。
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// AlignWords 在没有引擎回调时估算单词边界：
// 按每个单词的字符数占比分配总时长，边界首尾相接并覆盖整个时长。
func AlignWords(text string, durationMs uint64) []WordBoundary {
	words := strings.Fields(text)
	out := make([]WordBoundary, 0, len(words))
	if len(words) == 0 {
		return out
	}

	weights := make([]uint64, len(words))
	var total uint64
	for i, w := range words {
		weights[i] = uint64(utf8.RuneCountInString(w))
		total += weights[i]
	}

	var cum uint64
	for i, w := range words {
		start := durationMs * cum / total
		cum += weights[i]
		end := durationMs * cum / total
		out = append(out, WordBoundary{Word: w, StartMs: start, EndMs: end})
	}
	return out
}

// ClampBoundaries 返回按开始时间排序、且满足 start <= end <= durationMs 的边界副本。
// 空单词会被丢弃。
func ClampBoundaries(bs []WordBoundary, durationMs uint64) []WordBoundary {
	out := make([]WordBoundary, 0, len(bs))
	for _, b := range bs {
		b.Word = strings.TrimSpace(b.Word)
		if b.Word == "" {
			continue
		}
		if b.EndMs > durationMs {
			b.EndMs = durationMs
		}
		if b.StartMs > b.EndMs {
			b.StartMs = b.EndMs
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartMs < out[j].StartMs
	})
	return out
}

// chainBoundaries 把只有开始时间的事件序列补全结束时间：
// 每个单词结束于下一个单词开始，最后一个结束于音频末尾。
func chainBoundaries(bs []WordBoundary, durationMs uint64) []WordBoundary {
	for i := range bs {
		if i+1 < len(bs) {
			bs[i].EndMs = bs[i+1].StartMs
		} else {
			bs[i].EndMs = durationMs
		}
	}
	return bs
}
