package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// runFunc 执行外部命令并返回 stdout，测试中可以替换为假实现。
type runFunc func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// execRun 使用 os/exec 执行命令，失败时把 stderr 带进错误信息。
func execRun(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s 执行失败: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// unsupportedIfMissing 把“命令不存在”转换为 ErrUnsupported，其余错误原样返回。
func unsupportedIfMissing(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return err
}
