package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iabetor/soundmirror/internal/speech"
)

// 前端 invoke 使用的命令名。
const (
	CmdSpeakText      = "speak_text"
	CmdGetVoices      = "get_voices"
	CmdGetPreciseTime = "get_precise_time"
)

var (
	// ErrUnknownCommand 表示命令名不存在。
	ErrUnknownCommand = errors.New("[command] 未知命令")
	// ErrBadArguments 表示命令参数缺失或格式错误。
	ErrBadArguments = errors.New("[command] 参数错误")
)

// Commands 返回所有可调用的命令名。
func Commands() []string {
	return []string{CmdSpeakText, CmdGetVoices, CmdGetPreciseTime}
}

type speakTextArgs struct {
	Request *speech.Request `json:"request"`
}

type getVoicesArgs struct {
	Lang *string `json:"lang"`
}

// Invoke 按命令名分发，args 是命令参数组成的 JSON 对象：
//
//	speak_text        {"request": {"text": "...", "lang": "en-US", "rate": 1.0}}
//	get_voices        {"lang": "en-US"}
//	get_precise_time  无参数
//
// 返回值可直接序列化为 JSON。
func (s *Surface) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case CmdSpeakText:
		var a speakTextArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Request == nil {
			return nil, fmt.Errorf("%w: speak_text 缺少 request", ErrBadArguments)
		}
		return s.SpeakText(ctx, *a.Request)

	case CmdGetVoices:
		var a getVoicesArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Lang == nil {
			return nil, fmt.Errorf("%w: get_voices 缺少 lang", ErrBadArguments)
		}
		return s.GetVoices(ctx, *a.Lang), nil

	case CmdGetPreciseTime:
		return s.GetPreciseTime(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	args = bytes.TrimSpace(args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	return nil
}
