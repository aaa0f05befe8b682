package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/tagcache"
)

func TestSlogLoggerOrdersFields(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{
		Level: stdslog.LevelInfo,
		ReplaceAttr: func(_ []string, a stdslog.Attr) stdslog.Attr {
			if a.Key == stdslog.TimeKey {
				return stdslog.Attr{}
			}
			return a
		},
	})
	l := New(stdslog.New(h))

	l.Debug("dropped", tagcache.Fields{"k": 1})
	l.Info("api reset", tagcache.Fields{"ns": "blog", "entries": 3})

	got := strings.TrimSpace(buf.String())
	want := `level=INFO msg="api reset" component=tagcache entries=3 ns=blog`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}
