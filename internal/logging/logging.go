// Package logging wraps the standard library logger with a fixed prefix,
// used directly from every subsystem the way cmd/engine/main.go does.
package logging

import (
	"fmt"
	"log"
)

func init() {
	log.SetFlags(log.Ldate | log.Ltime)
}

// Line logs a single tagged line: "[shuma:tag] message".
func Line(tag, format string, args ...any) {
	log.Printf("[shuma:%s] %s", tag, fmt.Sprintf(format, args...))
}

// Fatal logs and terminates the process, used only for unrecoverable
// startup configuration errors, matching cmd/engine/main.go's use of
// log.Fatalf for missing required configuration.
func Fatal(tag, format string, args ...any) {
	log.Fatalf("[shuma:%s] %s", tag, fmt.Sprintf(format, args...))
}
