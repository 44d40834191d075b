// Package logger prints leveled, colored diagnostic lines.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	debugOn bool

	infoLabel  = color.New(color.FgWhite, color.BgGreen)
	warnLabel  = color.New(color.FgBlack, color.BgYellow)
	errorLabel = color.New(color.FgRed, color.Bold)
	debugLabel = color.New(color.FgCyan)
)

// SetOutput redirects all log lines. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

// SetDebug toggles Debug output.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debugOn = enabled
}

func write(label *color.Color, level string, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	ts := time.Now().Format("2006/01/02 15:04:05")
	_, _ = fmt.Fprintf(out, "%s %s %s\n", ts, label.Sprint("["+level+"]"), fmt.Sprintf(format, a...))
}

// Info logs information
func Info(format string, a ...interface{}) {
	write(infoLabel, "INFO", format, a...)
}

// Warn logs a warning
func Warn(format string, a ...interface{}) {
	write(warnLabel, "WARN", format, a...)
}

// Error logs an error
func Error(format string, a ...interface{}) {
	write(errorLabel, "ERROR", format, a...)
}

// Debug logs only when debug output is enabled.
func Debug(format string, a ...interface{}) {
	mu.Lock()
	enabled := debugOn
	mu.Unlock()
	if !enabled {
		return
	}
	write(debugLabel, "DEBUG", format, a...)
}
