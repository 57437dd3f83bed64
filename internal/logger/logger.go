package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 统一的键值对日志接口
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// Options 日志初始化选项
type Options struct {
	Level  string   // debug / info / warn / error
	Writer []string // console / file
	File   string   // 文件输出路径，writer 含 file 时生效
}

type zlog struct {
	l zerolog.Logger
}

// New 根据选项创建 zerolog 实现
func New(opts Options) Logger {
	var writers []io.Writer
	for _, w := range opts.Writer {
		switch w {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
		case "file":
			file := opts.File
			if file == "" {
				file = "cdpdriver.log"
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    50,
				MaxBackups: 3,
				MaxAge:     7,
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}

	l := zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return &zlog{l: l}
}

func (z *zlog) Debug(msg string, kv ...any) { emit(z.l.Debug(), msg, kv) }
func (z *zlog) Info(msg string, kv ...any)  { emit(z.l.Info(), msg, kv) }
func (z *zlog) Warn(msg string, kv ...any)  { emit(z.l.Warn(), msg, kv) }
func (z *zlog) Error(msg string, kv ...any) { emit(z.l.Error(), msg, kv) }

// emit 将键值对展开为 zerolog 字段，奇数个参数时末尾补位
func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

type nop struct{}

// NewNop 创建丢弃所有输出的 logger
func NewNop() Logger { return nop{} }

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}
