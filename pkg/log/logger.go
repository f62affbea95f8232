package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel 解析日志级别，未知值回退到 INFO
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type Logger struct {
	mu     sync.RWMutex
	level  LogLevel
	logger *log.Logger
}

func NewLogger(level LogLevel) *Logger {
	return NewWriterLogger(os.Stdout, level)
}

// NewWriterLogger 创建写入任意 io.Writer 的日志记录器
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	return &Logger{
		level:  level,
		logger: log.New(w, "", 0),
	}
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) Level() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Enabled 判断某个级别是否会输出
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.Level()
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.output(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.output(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.output(LevelError, format, args...)
}

// Fatal 记录致命错误并退出
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.output(LevelFatal, format, args...)
	os.Exit(1)
}

func (l *Logger) output(level LogLevel, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	// 跳过 output 和公开方法两层
	_, file, line, ok := runtime.Caller(2)
	fileName := "unknown"
	if ok {
		fileName = filepath.Base(file)
	}

	l.logger.Printf("[%s] [%s] [%s:%d] %s",
		time.Now().Format("2006-01-02 15:04:05"),
		level,
		fileName,
		line,
		fmt.Sprintf(format, args...))
}

// FileLogger 同时写入标准输出和日志文件
type FileLogger struct {
	*Logger
	file *os.File
}

// NewFileLogger 创建新的文件日志记录器
func NewFileLogger(logFile string, level LogLevel) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &FileLogger{
		Logger: NewWriterLogger(io.MultiWriter(os.Stdout, file), level),
		file:   file,
	}, nil
}

func (l *FileLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitLogger 初始化全局日志记录器
func InitLogger(level LogLevel) {
	SetLogger(NewLogger(level))
}

// SetLogger 替换全局日志记录器
func SetLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetLogger 获取全局日志记录器
func GetLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

// Convenience functions
func Debug(format string, args ...interface{}) {
	GetLogger().output(LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().output(LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().output(LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().output(LevelError, format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().output(LevelFatal, format, args...)
	os.Exit(1)
}
