package chat

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPacerDeliversEverything(t *testing.T) {
	var mu sync.Mutex
	var got strings.Builder
	p := NewPacer(time.Millisecond, func(full, delta string) {
		mu.Lock()
		got.WriteString(delta)
		mu.Unlock()
	})

	p.Push("hello ")
	p.Push("world")
	time.Sleep(5 * time.Millisecond)
	full := p.Finish()

	if full != "hello world" {
		t.Errorf("full = %q", full)
	}
	mu.Lock()
	defer mu.Unlock()
	if got.String() != "hello world" {
		t.Errorf("deltas = %q", got.String())
	}
}

func TestPacerFinishFlushesWithoutTicks(t *testing.T) {
	p := NewPacer(time.Hour, nil)
	p.Push("all at once")
	if full := p.Finish(); full != "all at once" {
		t.Errorf("full = %q", full)
	}
}

func TestPacerFinishIdempotent(t *testing.T) {
	calls := 0
	p := NewPacer(time.Hour, func(full, delta string) { calls++ })
	p.Push("once")

	first := p.Finish()
	second := p.Finish()
	if first != "once" || second != "once" {
		t.Errorf("finish = %q / %q", first, second)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times", calls)
	}
}

func TestPacerReleasesGradually(t *testing.T) {
	var mu sync.Mutex
	var deltas []string
	p := NewPacer(time.Millisecond, func(full, delta string) {
		mu.Lock()
		deltas = append(deltas, delta)
		mu.Unlock()
	})

	p.Push(strings.Repeat("x", 600))
	time.Sleep(20 * time.Millisecond)
	p.Finish()

	mu.Lock()
	defer mu.Unlock()
	if len(deltas) < 2 {
		t.Fatalf("expected paced release, got %d deltas", len(deltas))
	}
	if len(deltas[0]) >= 600 {
		t.Errorf("first delta released the whole buffer: %d runes", len(deltas[0]))
	}
}

func TestPacerUnicode(t *testing.T) {
	p := NewPacer(time.Hour, nil)
	p.Push("héllo wörld 你好")
	if full := p.Finish(); full != "héllo wörld 你好" {
		t.Errorf("full = %q", full)
	}
}
