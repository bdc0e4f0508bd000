package hooks

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// contextHook adds a "file:line" field naming the code that logged the entry.
type contextHook struct{}

func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook contextHook) Fire(entry *log.Entry) error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "sirupsen/logrus") && !strings.HasSuffix(frame.File, "context_hook.go") {
			entry.Data["file:line"] = fmt.Sprintf("%s:%d", trimPath(frame.File), frame.Line)
			return nil
		}
		if !more {
			return nil
		}
	}
}

// trimPath keeps the package directory and file name.
func trimPath(file string) string {
	dir, name := filepath.Split(file)
	return filepath.Join(filepath.Base(dir), name)
}
