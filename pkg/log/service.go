package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	config "github.com/mwantia/gophotos/internal/config/server"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerService interface {
	Debug(msg string, args ...any)

	Info(msg string, args ...any)

	Warn(msg string, args ...any)

	Error(msg string, args ...any)

	Fatal(msg string, args ...any)

	Named(name string) LoggerService
}

type LoggerServiceImpl struct {
	LoggerService

	cfg    config.LogServerConfig
	name   string
	level  LogLevel
	writer io.Writer
	mutex  *sync.Mutex
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func NewLoggerService(name string, cfg config.LogServerConfig) LoggerService {
	impl := &LoggerServiceImpl{
		cfg:   cfg,
		name:  name,
		level: Parse(cfg.Level),
		mutex: &sync.Mutex{},
	}

	impl.setupWriter()
	return impl
}

// NewWriterLoggerService creates a logger that only writes to w.
// Colors are disabled since w is usually not a terminal.
func NewWriterLoggerService(name string, cfg config.LogServerConfig, w io.Writer) LoggerService {
	cfg.NoColor = true

	return &LoggerServiceImpl{
		cfg:    cfg,
		name:   name,
		level:  Parse(cfg.Level),
		writer: w,
		mutex:  &sync.Mutex{},
	}
}

// NewNopLoggerService discards every message.
func NewNopLoggerService() LoggerService {
	return NewWriterLoggerService("", config.LogServerConfig{Level: "FATAL"}, io.Discard)
}

func (impl *LoggerServiceImpl) setupWriter() {
	var writers []io.Writer

	if !impl.cfg.NoTerminal {
		writers = append(writers, os.Stdout)
	}

	if impl.cfg.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   impl.cfg.File,
			MaxSize:    impl.cfg.Rotation.MaxSize,
			MaxBackups: impl.cfg.Rotation.MaxBackups,
			MaxAge:     impl.cfg.Rotation.MaxAge,
			Compress:   impl.cfg.Rotation.Compress,
		}
		writers = append(writers, fileWriter)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	impl.writer = io.MultiWriter(writers...)
}

func (impl *LoggerServiceImpl) log(level LogLevel, msg string, args ...any) {
	if level < impl.level {
		return
	}

	line := impl.format(time.Now(), level, fmt.Sprintf(msg, args...))

	impl.mutex.Lock()
	impl.writer.Write(line)
	impl.mutex.Unlock()

	if level == Fatal && impl.writer != io.Discard {
		os.Exit(1)
	}
}

func (impl *LoggerServiceImpl) format(t time.Time, level LogLevel, msg string) []byte {
	timestamp := t.Format(impl.cfg.TimeFormat)

	if impl.cfg.JSON {
		data, err := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   impl.name,
			Message:   msg,
		})
		if err != nil {
			data = []byte(strconv.Quote(msg))
		}
		return append(data, '\n')
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %-5s", timestamp, level)
	if impl.name != "" {
		fmt.Fprintf(&b, " [%s]", impl.name)
	}
	b.WriteString(" ")
	b.WriteString(msg)

	if !impl.cfg.NoTerminal && !impl.cfg.NoColor {
		return []byte(Color(level) + b.String() + "\033[0m\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

func (impl *LoggerServiceImpl) Debug(msg string, args ...any) {
	impl.log(Debug, msg, args...)
}

func (impl *LoggerServiceImpl) Info(msg string, args ...any) {
	impl.log(Info, msg, args...)
}

func (impl *LoggerServiceImpl) Warn(msg string, args ...any) {
	impl.log(Warn, msg, args...)
}

func (impl *LoggerServiceImpl) Error(msg string, args ...any) {
	impl.log(Error, msg, args...)
}

func (impl *LoggerServiceImpl) Fatal(msg string, args ...any) {
	impl.log(Fatal, msg, args...)
}

// Named returns a child logger sharing the writer. Its level is taken from
// log.components if the child is listed there.
func (impl *LoggerServiceImpl) Named(name string) LoggerService {
	full := joinName(impl.name, name)

	level := impl.level
	if value, ok := impl.cfg.Components[full]; ok {
		level = Parse(value)
	} else if value, ok := impl.cfg.Components[name]; ok {
		level = Parse(value)
	}

	return &LoggerServiceImpl{
		cfg:    impl.cfg,
		name:   full,
		level:  level,
		writer: impl.writer,
		mutex:  impl.mutex,
	}
}

func joinName(parent, child string) string {
	if parent == "" {
		return child
	}
	return fmt.Sprintf("%s/%s", parent, child)
}
