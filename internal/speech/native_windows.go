//go:build windows

package speech

// NativePlatform 是编译目标平台的系统 TTS 名称。
const NativePlatform = "windows-sapi"

// NewNativeEngine 返回 Windows 系统 TTS（System.Speech / SAPI）。
func NewNativeEngine(voice string) Engine {
	return NewSAPIEngine(voice)
}
