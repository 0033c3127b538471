package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRun_ReverseOrder(t *testing.T) {
	h := NewHandler(time.Second)

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		h.OnShutdown(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	if err := h.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("hook order = %v, want [3 2 1]", order)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after Run()")
	}
}

func TestRun_AllHooksRunDespiteErrors(t *testing.T) {
	h := NewHandler(time.Second)

	boom := errors.New("boom")
	ran := 0
	h.OnShutdown(func(context.Context) error { ran++; return nil })
	h.OnShutdown(func(context.Context) error { ran++; return boom })
	h.OnShutdown(func(context.Context) error { ran++; return nil })

	if err := h.Run(); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want boom", err)
	}
	if ran != 3 {
		t.Errorf("ran %d hooks, want 3", ran)
	}
}
