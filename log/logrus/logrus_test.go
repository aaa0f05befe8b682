package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/tagcache"
)

func TestLogrusLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	boom := errors.New("boom")
	l.Error("gen bump error", tagcache.Fields{"tags": 2, "err": boom})

	e := hook.LastEntry()
	if e == nil || e.Message != "gen bump error" || e.Level != logrus.ErrorLevel {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Data["component"] != "tagcache" || e.Data["tags"] != 2 || e.Data[logrus.ErrorKey] != boom {
		t.Fatalf("data = %v", e.Data)
	}

	l.Debug("plain", nil)
	if hook.LastEntry().Message != "plain" || len(hook.Entries) != 2 {
		t.Fatalf("debug entry not recorded")
	}
}
