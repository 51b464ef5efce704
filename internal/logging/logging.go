package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Setup 初始化全局 zerolog logger：日志统一写 stderr，stdout 留给一行状态输出
func Setup(level string) {
	SetupWriter(os.Stderr, level)
}

// SetupWriter 同 Setup，但允许指定输出目标（测试中使用）
func SetupWriter(w io.Writer, level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat, NoColor: true}
	log.Logger = zerolog.New(cw).With().Timestamp().Str("app", "noticewatch").Logger()
}

// ParseLevel 解析日志级别，无法识别时回退到 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
