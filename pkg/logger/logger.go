// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	// 添加院系标识
	if dept, ok := ctx.Value("department").(string); ok {
		l = l.With().Str("department", dept).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// SolverLogger 排课引擎专用日志器
type SolverLogger struct {
	base *zerolog.Logger
}

// NewSolverLogger 创建排课引擎日志器
func NewSolverLogger() *SolverLogger {
	l := Get().With().Str("component", "ttmodel").Logger()
	return &SolverLogger{base: &l}
}

// StartSolve 记录求解开始
func (l *SolverLogger) StartSolve(department string, periods, courses int) {
	l.base.Info().
		Str("department", department).
		Int("periods", periods).
		Int("courses", courses).
		Msg("开始构建排课模型")
}

// PhaseDone 记录建模阶段完成
func (l *SolverLogger) PhaseDone(phase string, vars, constraints int) {
	l.base.Debug().
		Str("phase", phase).
		Int("vars", vars).
		Int("constraints", constraints).
		Msg("建模阶段完成")
}

// ConstraintApplied 记录用户约束注入
func (l *SolverLogger) ConstraintApplied(kind, id string) {
	l.base.Debug().
		Str("kind", kind).
		Str("constraint_id", id).
		Msg("用户约束已注入")
}

// SolveComplete 记录求解完成
func (l *SolverLogger) SolveComplete(department, status string, duration time.Duration, objective float64) {
	l.base.Info().
		Str("department", department).
		Str("status", status).
		Dur("duration", duration).
		Float64("objective", objective).
		Msg("求解完成")
}

// PreAnalyseResult 记录预分析结果
func (l *SolverLogger) PreAnalyseResult(department string, ok bool, messages int) {
	l.base.Info().
		Str("department", department).
		Bool("ok", ok).
		Int("messages", messages).
		Msg("预分析完成")
}
