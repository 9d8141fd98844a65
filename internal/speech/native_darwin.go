//go:build darwin

package speech

// NativePlatform 是编译目标平台的系统 TTS 名称。
const NativePlatform = "macos-say"

// NewNativeEngine 返回 macOS 系统 TTS（say 命令）。
func NewNativeEngine(voice string) Engine {
	return NewSayEngine(voice)
}
