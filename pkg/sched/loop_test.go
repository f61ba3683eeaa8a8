package sched

import (
	"sync"
	"testing"
	"time"
)

func TestSubmitRunsNextStep(t *testing.T) {
	l := NewLoop(0)
	var ran []string

	l.Submit(func() { ran = append(ran, "a") })
	l.Submit(func() { ran = append(ran, "b") })
	if len(ran) != 0 {
		t.Fatal("Submit must not run inline")
	}

	l.Step()
	if len(ran) != 2 || ran[0] != "a" || ran[1] != "b" {
		t.Fatalf("Step: want [a b] in submission order, got %v", ran)
	}
}

func TestLaterFiresAtExactTick(t *testing.T) {
	l := NewLoop(0)
	fired := false

	l.Later(3, func() { fired = true })

	l.Step()
	l.Step()
	if fired {
		t.Fatal("Later(3): fired early")
	}
	l.Step()
	if !fired {
		t.Fatal("Later(3): did not fire on the third tick")
	}
}

func TestLaterZeroBehavesLikeSubmit(t *testing.T) {
	l := NewLoop(0)
	fired := false
	l.Later(0, func() { fired = true })
	l.Step()
	if !fired {
		t.Fatal("Later(0): want next-tick execution")
	}
}

func TestReadyRunsBeforeDelayed(t *testing.T) {
	l := NewLoop(0)
	var ran []string

	l.Later(1, func() { ran = append(ran, "delayed") })
	l.Submit(func() { ran = append(ran, "ready") })

	l.Step()
	if len(ran) != 2 || ran[0] != "ready" || ran[1] != "delayed" {
		t.Fatalf("Step: want [ready delayed], got %v", ran)
	}
}

func TestAsyncMarshalsBack(t *testing.T) {
	l := NewLoop(0)
	done := make(chan struct{})
	var mu sync.Mutex
	submitted := false

	l.Async(func() {
		l.Submit(func() {
			mu.Lock()
			submitted = true
			mu.Unlock()
		})
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Async: worker did not run")
	}

	l.Step()
	mu.Lock()
	defer mu.Unlock()
	if !submitted {
		t.Fatal("Async: marshalled task did not run on the loop")
	}
}
