package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevelsAndFormatting(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("daemon starting")
	Warnf("retrying in %ds", 5)
	Errorf("device error: %v", "boom")

	out := buf.String()
	for _, want := range []string{"INF", "daemon starting", "WRN", "retrying in 5s", "ERR", "device error: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
