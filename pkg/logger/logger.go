package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// ParseLevel "debug", "info", "warn", "error"; 其他值按 info 处理
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup 初始化全局日志配置
// logPath: 日志文件路径 (如果为空则只输出到控制台)
func Setup(levelStr string, logPath string) error {
	var file io.Writer
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		file = f
	}

	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	slog.SetDefault(New(levelStr, os.Stdout, !color, file))
	return nil
}

// New 控制台使用 tint 彩色输出, file 非空时同时写入纯文本日志
func New(levelStr string, console io.Writer, noColor bool, file io.Writer) *slog.Logger {
	level := ParseLevel(levelStr)

	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:      level,
			AddSource:  level == slog.LevelDebug, // 仅在 Debug 模式下显示文件名和行号
			TimeFormat: time.TimeOnly,
			NoColor:    noColor,
		}),
	}
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}))
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(NewMultiHandler(handlers...))
}
