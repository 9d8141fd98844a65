package speech

// Request 是 speak_text 命令的参数。
type Request struct {
	Text string  `json:"text"`
	Lang string  `json:"lang"`
	Rate float32 `json:"rate"` // 语速倍率，必须为正的有限数
}

// WordBoundary 描述一个单词在合成音频中的时间范围。
// 满足 StartMs <= EndMs <= 所属 Response 的 DurationMs。
type WordBoundary struct {
	Word    string `json:"word"`
	StartMs uint64 `json:"start_ms"`
	EndMs   uint64 `json:"end_ms"`
}

// Response 是 speak_text 命令的返回值。
// 平台不支持语音合成时 Success 为 false，而不是返回错误。
type Response struct {
	Success        bool           `json:"success"`
	DurationMs     uint64         `json:"duration_ms"`
	WordBoundaries []WordBoundary `json:"word_boundaries"`
}

// Unavailable 返回表示“无法合成”的响应：success=false、时长 0、空边界列表。
func Unavailable() Response {
	return Response{WordBoundaries: []WordBoundary{}}
}

// Synthesis 是引擎的合成结果。
// 只做估算的引擎 Samples 为空、DurationMs 直接给出；
// 真实合成的引擎返回单声道音频，DurationMs 由样本数计算。
type Synthesis struct {
	Samples    []float32
	SampleRate int
	DurationMs uint64
	// Boundaries 引擎回调给出的单词边界，没有时为空，由调用方按时长估算。
	Boundaries []WordBoundary
	// Engine 实际完成合成的引擎名称，由 FallbackEngine 填写。
	Engine string
}
