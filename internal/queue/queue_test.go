package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueue_RunsTasksInOrder(t *testing.T) {
	q := New(4, nil)
	defer q.Close(context.Background())

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		err := q.Submit("append", func(ctx context.Context) error {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not finish")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, tasks ran out of order: %v", i, v, order)
		}
	}
}

func TestQueue_Flush_WaitsForSubmitted(t *testing.T) {
	q := New(4, nil)
	defer q.Close(context.Background())

	var ran atomic.Int64
	for i := 0; i < 3; i++ {
		q.Submit("slow", func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
			return nil
		})
	}

	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := ran.Load(); got != 3 {
		t.Errorf("tasks run after Flush() = %d, want 3", got)
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() after Flush() = %d, want 0", q.Pending())
	}
}

func TestQueue_Flush_RespectsContext(t *testing.T) {
	q := New(4, nil)
	defer q.Close(context.Background())

	release := make(chan struct{})
	q.Submit("blocked", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Flush() error = %v, want DeadlineExceeded", err)
	}
	close(release)
}

func TestQueue_TaskErrorDoesNotStopQueue(t *testing.T) {
	q := New(4, nil)
	defer q.Close(context.Background())

	q.Submit("failing", func(ctx context.Context) error {
		return errors.New("remote unavailable")
	})

	var ran atomic.Bool
	q.Submit("after failure", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !ran.Load() {
		t.Error("task after a failing task did not run")
	}
}

func TestQueue_SubmitAfterClose(t *testing.T) {
	q := New(4, nil)
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := q.Submit("late", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrClosed", err)
	}
}

func TestQueue_Close_Twice(t *testing.T) {
	q := New(4, nil)
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.Close(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
}

func TestQueue_Close_GracePeriod(t *testing.T) {
	q := New(4, nil)

	release := make(chan struct{})
	q.Submit("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() error = %v, want DeadlineExceeded", err)
	}
	close(release)
}
