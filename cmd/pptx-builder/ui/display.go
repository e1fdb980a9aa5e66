package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Success displays a success message.
func Success(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(os.Stdout, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Error displays an error message to stderr.
func Error(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Warning displays a warning message to stderr.
func Warning(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(os.Stderr, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(os.Stdout, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Detail displays an indented key/value line, only in verbose mode.
func Detail(key string, value interface{}) {
	if !verboseFlag {
		return
	}
	color.New(color.FgYellow).Fprintf(os.Stdout, "  %s: ", key)
	fmt.Fprintf(os.Stdout, "%v\n", value)
}

// Section displays a section header.
func Section(title string) {
	bold := color.New(color.FgMagenta, color.Bold)
	bold.Fprintf(os.Stdout, "\n%s\n", title)
	bold.Fprintf(os.Stdout, "%s\n\n", strings.Repeat("=", len(title)))
}
