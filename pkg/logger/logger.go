package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
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

var (
	mu           sync.RWMutex
	currentLevel = INFO
	sink         = &fileSink{}
)

type fileSink struct {
	mu           sync.Mutex
	file         *os.File
	path         string
	maxSizeBytes int64
	maxAgeDays   int
}

type entry struct {
	Level     string                 `json:"level"`
	Timestamp string                 `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func SetLevel(level LogLevel) {
	mu.Lock()
	currentLevel = level
	mu.Unlock()
}

func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// EnableFileLogging mirrors console output into a JSON-lines file with
// size-based rotation and age-based cleanup of rotated files.
func EnableFileLogging(path string, maxSizeMB, maxAgeDays int) error {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 3
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.file != nil {
		sink.file.Close()
	}
	sink.file = f
	sink.path = path
	sink.maxSizeBytes = int64(maxSizeMB) * 1024 * 1024
	sink.maxAgeDays = maxAgeDays
	sink.cleanupLocked()
	return nil
}

func DisableFileLogging() {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.file != nil {
		sink.file.Close()
		sink.file = nil
		sink.path = ""
	}
}

func (s *fileSink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}
	if s.maxSizeBytes > 0 {
		if info, err := s.file.Stat(); err == nil && info.Size()+int64(len(line)) > s.maxSizeBytes {
			s.rotateLocked()
		}
	}
	if s.file == nil {
		return
	}
	if _, err := s.file.Write(line); err != nil {
		log.Println("file log write failed:", err)
	}
}

func (s *fileSink) rotateLocked() {
	if err := s.file.Close(); err != nil {
		s.file = nil
		return
	}
	backup := fmt.Sprintf("%s.%s", s.path, time.Now().UTC().Format("20060102-150405"))
	_ = os.Rename(s.path, backup)
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.file = nil
		return
	}
	s.file = f
	s.cleanupLocked()
}

func (s *fileSink) cleanupLocked() {
	if s.maxAgeDays <= 0 || s.path == "" {
		return
	}
	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.maxAgeDays)
	for _, e := range entries {
		// Only rotated files like onebridge.log.20260102-150405 are eligible.
		if e.IsDir() || !strings.HasPrefix(e.Name(), base+".") {
			continue
		}
		if info, err := e.Info(); err == nil && info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

func logMessage(level LogLevel, component, message string, fields map[string]interface{}) {
	mu.RLock()
	min := currentLevel
	mu.RUnlock()
	if level < min {
		return
	}

	e := entry{
		Level:     levelNames[level],
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Component: component,
		Message:   message,
		Fields:    fields,
	}

	if data, err := json.Marshal(e); err == nil {
		sink.write(append(data, '\n'))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s]", e.Timestamp, e.Level)
	if component != "" {
		fmt.Fprintf(&b, " %s:", component)
	}
	b.WriteString(" " + message)
	if len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for k, v := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(parts, ", "))
	}
	log.Println(b.String())

	if level == FATAL {
		os.Exit(1)
	}
}

func DebugC(component, message string) { logMessage(DEBUG, component, message, nil) }
func InfoC(component, message string)  { logMessage(INFO, component, message, nil) }
func WarnC(component, message string)  { logMessage(WARN, component, message, nil) }
func ErrorC(component, message string) { logMessage(ERROR, component, message, nil) }
func FatalC(component, message string) { logMessage(FATAL, component, message, nil) }

func DebugCF(component, message string, fields map[string]interface{}) {
	logMessage(DEBUG, component, message, fields)
}

func InfoCF(component, message string, fields map[string]interface{}) {
	logMessage(INFO, component, message, fields)
}

func WarnCF(component, message string, fields map[string]interface{}) {
	logMessage(WARN, component, message, fields)
}

func ErrorCF(component, message string, fields map[string]interface{}) {
	logMessage(ERROR, component, message, fields)
}
