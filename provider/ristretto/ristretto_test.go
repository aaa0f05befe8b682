package ristretto

import (
	"context"
	"testing"
	"time"
)

func TestSyncWritesVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	p, err := New(DefaultConfig(100))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Set ok=%v err=%v", ok, err)
	}
	got, hit, err := p.Get(ctx, "k")
	if err != nil || !hit || string(got) != "v" {
		t.Fatalf("Get hit=%v err=%v got=%q", hit, err, got)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := p.Get(ctx, "k"); hit {
		t.Fatalf("expected miss after Del")
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for zero config")
	}
}
