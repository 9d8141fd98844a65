package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/iabetor/soundmirror/internal/app"
	"github.com/iabetor/soundmirror/internal/config"
	"github.com/iabetor/soundmirror/internal/lang"
	"github.com/iabetor/soundmirror/internal/speech"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 返回进程退出码，确保 defer 的 Close 在退出前执行。
func run(argv []string) int {
	fs := flag.NewFlagSet("smctl", flag.ContinueOnError)
	configPath := fs.String("config", "configs/soundmirror.yaml", "配置文件路径")
	if err := fs.Parse(argv); err != nil {
		return 1
	}

	args := fs.Args()
	if len(args) == 0 {
		printUsage()
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}
	// 命令行下总是等播放结束再退出
	cfg.Playback.Wait = true

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		return 1
	}
	defer a.Close()

	ctx := context.Background()
	switch args[0] {
	case "speak":
		return cmdSpeak(ctx, a, args[1:])
	case "voices":
		tag := ""
		if len(args) > 1 {
			tag = args[1]
		}
		return printJSON(a.Surface.GetVoices(ctx, tag))
	case "time":
		return printJSON(map[string]uint64{"time_ms": a.Surface.GetPreciseTime()})
	case "languages":
		return printJSON(lang.Supported())
	case "history":
		return cmdHistory(ctx, a, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "SoundMirror 语音命令行工具")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "用法: smctl [-config <path>] <command> [args]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "命令:")
	fmt.Fprintln(os.Stderr, "  speak [-lang en] [-rate 1.0] <文本>  合成并朗读文本，输出时长和逐词时间")
	fmt.Fprintln(os.Stderr, "  voices [语言]                       列出可用语音")
	fmt.Fprintln(os.Stderr, "  time                                输出当前毫秒时间戳")
	fmt.Fprintln(os.Stderr, "  languages                           列出支持的语言")
	fmt.Fprintln(os.Stderr, "  history [条数]                      查看最近的合成记录")
}

func cmdSpeak(ctx context.Context, a *app.App, args []string) int {
	fs := flag.NewFlagSet("speak", flag.ContinueOnError)
	tag := fs.String("lang", "en", "语言")
	rate := fs.Float64("rate", 1.0, "语速倍率")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	text := strings.Join(fs.Args(), " ")
	if text == "" {
		fmt.Fprintln(os.Stderr, "用法: smctl speak [-lang en] [-rate 1.0] <文本>")
		return 1
	}

	resp, err := a.Surface.SpeakText(ctx, speech.Request{Text: text, Lang: *tag, Rate: float32(*rate)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "合成失败: %v\n", err)
		return 1
	}
	if code := printJSON(resp); code != 0 {
		return code
	}
	if !resp.Success {
		return 2
	}
	return 0
}

func cmdHistory(ctx context.Context, a *app.App, args []string) int {
	if a.History == nil {
		fmt.Fprintln(os.Stderr, "合成历史未启用，请在配置文件中设置 database.history: true")
		return 1
	}
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			fmt.Fprintf(os.Stderr, "无效的条数: %s\n", args[0])
			return 1
		}
		limit = n
	}
	entries, err := a.History.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询历史失败: %v\n", err)
		return 1
	}
	return printJSON(entries)
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "输出失败: %v\n", err)
		return 1
	}
	return 0
}
