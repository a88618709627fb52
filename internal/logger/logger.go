package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// levelColors holds the level and category colors of each level.
var levelColors = map[LogLevel][2]*color.Color{
	DEBUG: {color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
	INFO:  {color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
	WARN:  {color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
	ERROR: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
	FATAL: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
}

type LogEntry struct {
	level     LogLevel
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Logger struct {
	mu           sync.Mutex
	out          io.Writer
	logFile      *os.File
	colorEnabled bool
	minLevel     LogLevel
}

// NewLogger writes colored lines to stdout and JSON lines to logs/<service>-<date>.log.
func NewLogger(service string) *Logger {
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Fatal("Failed to create logs directory:", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	logFileName := fmt.Sprintf("logs/%s-%s.log", service, timestamp)

	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to create log file:", err)
	}

	logger := &Logger{
		out:          os.Stdout,
		logFile:      logFile,
		colorEnabled: true,
		minLevel:     levelFromEnv(),
	}

	logger.Info("LOGGER", "Enhanced logging system initialized")
	logger.Info("LOGGER", fmt.Sprintf("Log file: %s", logFileName))

	return logger
}

// New builds a logger without a log file. Tests pass io.Discard.
func New(w io.Writer) *Logger {
	return &Logger{out: w, minLevel: DEBUG}
}

func levelFromEnv() LogLevel {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return DEBUG
	}
}

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		level:     level,
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.out, l.formatTerminalOutput(entry))

	if l.logFile != nil {
		l.logFile.WriteString(l.formatJSONOutput(entry) + "\n")
	}
}

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]

	if !l.colorEnabled {
		if entry.File != "" && entry.Line > 0 {
			return fmt.Sprintf("%s %-5s [%-10s] %s (%s:%d)\n", timestamp, entry.Level, entry.Category, entry.Message, entry.File, entry.Line)
		}
		return fmt.Sprintf("%s %-5s [%-10s] %s\n", timestamp, entry.Level, entry.Category, entry.Message)
	}

	colors, ok := levelColors[entry.level]
	if !ok {
		colors = [2]*color.Color{color.New(color.FgWhite), color.New(color.FgWhite, color.Bold)}
	}
	levelColor, categoryColor := colors[0], colors[1]

	timeStr := color.New(color.FgBlue).Sprintf("%s", timestamp)
	levelStr := levelColor.Sprintf("%-5s", entry.Level)
	categoryStr := categoryColor.Sprintf("[%-10s]", entry.Category)

	if entry.File != "" && entry.Line > 0 {
		fileInfo := color.New(color.FgMagenta).Sprintf(" (%s:%d)", entry.File, entry.Line)
		return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, entry.Message, fileInfo)
	}

	return fmt.Sprintf("%s %s %s %s\n", timeStr, levelStr, categoryStr, entry.Message)
}

func (l *Logger) formatJSONOutput(entry LogEntry) string {
	jsonBytes, _ := json.Marshal(entry)
	return string(jsonBytes)
}

// Public logging methods
func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Specialized logging methods for different components
func (l *Logger) LogOrder(action string, orderID int64, message string) {
	l.Info("ORDER", fmt.Sprintf("[%s] %d - %s", action, orderID, message))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.Info("API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

// LogCache records one seat cache operation on the entry of an event.
func (l *Logger) LogCache(action string, eventID int64, message string) {
	l.Debug("CACHE", fmt.Sprintf("[%s] event=%d - %s", action, eventID, message))
}

// LogCacheStats summarizes seat cache traffic with its hit ratio.
func (l *Logger) LogCacheStats(hits, misses, loads, backendErrors uint64) {
	ratio := 0.0
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total) * 100
	}
	level := INFO
	if backendErrors > 0 {
		level = WARN
	}
	l.log(level, "CACHE", fmt.Sprintf("[STATS] hits=%d misses=%d loads=%d backend_errors=%d hit_ratio=%.1f%%",
		hits, misses, loads, backendErrors, ratio))
}

// LogSeatChange records seats of an event flipping state. origin is the
// instance that committed the change.
func (l *Logger) LogSeatChange(eventID, orderID int64, seatIDs []int64, reserved bool, origin string) {
	action := "RELEASED"
	if reserved {
		action = "RESERVED"
	}
	l.Info("SEATS", fmt.Sprintf("[%s] event=%d order=%d seats=%v origin=%s", action, eventID, orderID, seatIDs, origin))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
