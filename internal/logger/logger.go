package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes trading activity to a per-symbol daily log file.
type Logger struct {
	symbol  string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
}

type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelRisk    LogLevel = "RISK"
)

// New creates a logger writing to <dir>/<symbol>_<date>.log.
func New(dir, symbol string) (*Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.log", symbol, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		symbol:  symbol,
		logFile: file,
		logger:  log.New(file, "", 0),
		logDir:  dir,
	}
	l.writeSessionHeader()
	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Printf("================================================================================")
	l.logger.Printf("TRADING SESSION STARTED | Symbol: %s | %s", l.symbol, time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Printf("================================================================================")
}

// Log writes a formatted entry with the given level.
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.logger.Printf("[%s] [%s] %s", timestamp, level, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Risk logs a risk-engine decision; every evaluation is auditable.
func (l *Logger) Risk(format string, args ...interface{}) {
	l.Log(LogLevelRisk, format, args...)
}

// LogError logs an error with its originating context.
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// LogEvaluation records a risk decision with its reasons.
func (l *Logger) LogEvaluation(decision string, score float64, size float64, reasons []string) {
	if len(reasons) == 0 {
		l.Risk("decision=%s score=%.3f size=%.6f", decision, score, size)
		return
	}
	l.Risk("decision=%s score=%.3f size=%.6f reasons=%v", decision, score, size, reasons)
}

// LogExecution records an order execution result.
func (l *Logger) LogExecution(mode, status, orderID string, price, size float64) {
	l.Trade("mode=%s status=%s order=%s price=%.2f size=%.6f", mode, status, orderID, price, size)
}

// Close writes the session footer and closes the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	l.logger.Printf("================================================================================")
	l.logger.Printf("TRADING SESSION ENDED | %s", time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Printf("================================================================================")
	return l.logFile.Close()
}
