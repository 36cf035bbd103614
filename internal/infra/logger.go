package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/racingplus/client/internal/domain"
)

// LogFileName is the log file written next to the installed executable.
const LogFileName = "Racing+.log"

// LogOptions configures NewLogger.
type LogOptions struct {
	// Development switches to a human-readable console logger.
	Development bool
	// FilePath receives JSON logs in production. Empty disables file output.
	FilePath string
	// Level is the minimum level ("debug", "info", "warn", "error").
	Level string
}

// NewLogger builds the process logger.
// Production writes JSON to the log file and tees warnings to stderr;
// development writes colourised console output when stderr is a terminal.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	} else if opts.Development {
		level.SetLevel(zapcore.DebugLevel)
	}

	if opts.Development {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
		return zap.New(core, zap.AddCaller(), zap.Development()), nil
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	stderrCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= zapcore.WarnLevel && level.Enabled(l) }),
	)
	if opts.FilePath == "" {
		return zap.New(stderrCore, zap.AddCaller()), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), level)

	return zap.New(zapcore.NewTee(fileCore, stderrCore), zap.AddCaller()), nil
}

// LogReporter implements domain.ErrorReporter by logging faults at error level.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a reporter writing to logger.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger.Named("fault")}
}

// Capture records an unexpected fault.
func (r *LogReporter) Capture(err error, where string) {
	if err == nil {
		return
	}
	r.logger.Error("unexpected fault",
		zap.String("where", where),
		zap.Error(err),
		zap.Stack("stack"))
}

// Ensure LogReporter implements domain.ErrorReporter.
var _ domain.ErrorReporter = (*LogReporter)(nil)
