package hooks

import (
	"bytes"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestContextHookAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.Out = &buf
	logger.AddHook(NewContextHook())

	logger.Info("hello")
	if !strings.Contains(buf.String(), "hooks/context_hook_test.go:") {
		t.Fatalf("Expected caller in %q", buf.String())
	}
}
