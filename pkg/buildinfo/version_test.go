package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	old := Version
	Version = "v9.9.9"
	t.Cleanup(func() { Version = old })

	info := Get()
	if info.Version != "v9.9.9" || info.GoVersion != runtime.Version() {
		t.Errorf("Get() = %+v", info)
	}
	if tmpl := Template(); !strings.HasPrefix(tmpl, "{{.Name}} v9.9.9 (commit ") || !strings.HasSuffix(tmpl, "\n") {
		t.Errorf("Template() = %q", tmpl)
	}
}
