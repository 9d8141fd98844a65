//go:build !darwin && !windows

package speech

// NativePlatform 是编译目标平台的系统 TTS 名称。
const NativePlatform = "unsupported"

// NewNativeEngine 在没有系统 TTS 的平台上返回 UnsupportedEngine。
// 需要发声时请在 speech.priority 中配置 edge、piper 等引擎。
func NewNativeEngine(voice string) Engine {
	return UnsupportedEngine{}
}
