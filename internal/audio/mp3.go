package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 将 MP3 数据解码为单声道 float32 样本。
// go-mp3 固定输出立体声 signed 16-bit LE PCM，这里左右声道取平均。
// 解码过程中检查 ctx，长文本合成的音频可以被及时取消。
func DecodeMP3(ctx context.Context, data []byte) ([]float32, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("[audio] MP3 数据为空")
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("[audio] MP3 解码失败: %w", err)
	}

	pcm, err := readPCM(ctx, decoder)
	if err != nil {
		return nil, 0, err
	}
	return InterleavedToMono(pcm, 2), decoder.SampleRate(), nil
}

// readPCM 读到 io.EOF 为止，其他读错误说明数据损坏，直接返回而不是当作截断的音频。
func readPCM(ctx context.Context, r io.Reader) ([]byte, error) {
	pcmBuf := new(bytes.Buffer)
	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(buf)
		pcmBuf.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			return pcmBuf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("[audio] MP3 解码失败: %w", err)
		}
	}
}
