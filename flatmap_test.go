package flowz

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestFlatMap(t *testing.T) {
	t.Run("Concatenates Inner Sources In Order", func(t *testing.T) {
		src := FlatMap(From(1, 2, 3), func(v int) (*Source[int], error) {
			return From(v*10, v*10+1), nil
		})
		got := awaitResult(t, src.ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{10, 11, 20, 21, 30, 31}) {
			t.Errorf("expected concatenated inners, got %v", got)
		}
	})

	t.Run("Empty Inner Sources Are Skipped", func(t *testing.T) {
		src := FlatMap(From(1, 2, 3), func(v int) (*Source[int], error) {
			if v == 2 {
				return Empty[int](), nil
			}
			return From(v), nil
		})
		got := awaitResult(t, src.ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{1, 3}) {
			t.Errorf("expected [1 3], got %v", got)
		}
	})

	t.Run("All Empty Completes Empty", func(t *testing.T) {
		src := FlatMap(From(1, 2), func(int) (*Source[int], error) {
			return Empty[int](), nil
		})
		got := awaitResult(t, src.ToList().Run(context.Background()))
		if len(got) != 0 {
			t.Errorf("expected empty, got %v", got)
		}
	})

	t.Run("Inner Chains Run Their Own Operators", func(t *testing.T) {
		src := FlatMap(From(10, 20), func(v int) (*Source[int], error) {
			return From(v, v+1, v+2).Filter(func(x int) (bool, error) {
				return x%2 == 0, nil
			}), nil
		})
		got := awaitResult(t, src.ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{10, 12, 20, 22}) {
			t.Errorf("expected [10 12 20 22], got %v", got)
		}
	})

	t.Run("Inner Failure Cancels Outer", func(t *testing.T) {
		boom := errors.New("boom")
		var consumed []int
		var mu sync.Mutex

		src := FlatMap(From(1, 2, 3).Peek(func(v int) error {
			mu.Lock()
			consumed = append(consumed, v)
			mu.Unlock()
			return nil
		}), func(v int) (*Source[int], error) {
			if v == 2 {
				return Failed[int](boom), nil
			}
			return From(v), nil
		})

		err := awaitFailure(t, src.ToList().Run(context.Background()))
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		if !reflect.DeepEqual(consumed, []int{1, 2}) {
			t.Errorf("outer should stop at the failing inner, got %v", consumed)
		}
	})

	t.Run("Function Error Fails Stream", func(t *testing.T) {
		boom := errors.New("boom")
		src := FlatMap(From(1), func(int) (*Source[int], error) {
			return nil, boom
		})
		err := awaitFailure(t, src.ToList().Run(context.Background()))
		var streamErr *Error
		if !errors.As(err, &streamErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if streamErr.Stage != "flat-map" {
			t.Errorf("expected stage flat-map, got %q", streamErr.Stage)
		}
	})

	t.Run("Nil Inner Source Fails Stream", func(t *testing.T) {
		src := FlatMap(From(1), func(int) (*Source[int], error) {
			return nil, nil
		})
		err := awaitFailure(t, src.ToList().Run(context.Background()))
		var streamErr *Error
		if !errors.As(err, &streamErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
	})
}

func TestFlatMapSlice(t *testing.T) {
	t.Run("Expands Elements In Place", func(t *testing.T) {
		src := FlatMapSlice(From(1, 2), func(v int) ([]int, error) {
			return []int{v, v + 100}, nil
		})
		got := awaitResult(t, src.ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{1, 101, 2, 102}) {
			t.Errorf("expected [1 101 2 102], got %v", got)
		}
	})

	t.Run("Empty Slices Are Skipped", func(t *testing.T) {
		src := FlatMapSlice(From(1, 2, 3), func(v int) ([]int, error) {
			if v == 2 {
				return nil, nil
			}
			return []int{v}, nil
		})
		got := awaitResult(t, src.ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{1, 3}) {
			t.Errorf("expected [1 3], got %v", got)
		}
	})

	t.Run("Function Error Fails Stream", func(t *testing.T) {
		boom := errors.New("boom")
		src := FlatMapSlice(From(1), func(int) ([]int, error) {
			return nil, boom
		})
		err := awaitFailure(t, src.ToList().Run(context.Background()))
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})
}

func TestFlatMapAsync(t *testing.T) {
	t.Run("Preserves Element Order Regardless Of Resolution Order", func(t *testing.T) {
		tasks := map[int]*Task[string]{
			1: NewTask[string](),
			2: NewTask[string](),
			3: NewTask[string](),
		}
		src := FlatMapAsync(From(1, 2, 3), func(v int) (*Task[string], error) {
			return tasks[v], nil
		})
		result := src.ToList().Run(context.Background())

		// Settle in reverse: the stream still emits in element order.
		tasks[3].Complete("c")
		tasks[2].Complete("b")
		tasks[1].Complete("a")

		got := awaitResult(t, result)
		if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
			t.Errorf("expected [a b c], got %v", got)
		}
	})

	t.Run("Holds One Task Outstanding At A Time", func(t *testing.T) {
		tasks := map[int]*Task[int]{
			1: NewTask[int](),
			2: NewTask[int](),
		}
		calls := make(chan int, 2)
		src := FlatMapAsync(From(1, 2), func(v int) (*Task[int], error) {
			calls <- v
			return tasks[v], nil
		})
		result := src.ToList().Run(context.Background())

		select {
		case v := <-calls:
			if v != 1 {
				t.Fatalf("expected first call with 1, got %d", v)
			}
		case <-time.After(time.Second):
			t.Fatal("first element never reached the async stage")
		}

		// The second element must wait for the first task.
		time.Sleep(50 * time.Millisecond)
		select {
		case v := <-calls:
			t.Fatalf("second call with %d before the first task settled", v)
		default:
		}

		tasks[1].Complete(10)
		select {
		case v := <-calls:
			if v != 2 {
				t.Fatalf("expected second call with 2, got %d", v)
			}
		case <-time.After(time.Second):
			t.Fatal("second element never reached the async stage")
		}
		tasks[2].Complete(20)

		got := awaitResult(t, result)
		if !reflect.DeepEqual(got, []int{10, 20}) {
			t.Errorf("expected [10 20], got %v", got)
		}
	})

	t.Run("Task Failure Fails Stream", func(t *testing.T) {
		boom := errors.New("boom")
		src := FlatMapAsync(From(1), func(int) (*Task[int], error) {
			return FailedTask[int](boom), nil
		})
		err := awaitFailure(t, src.ToList().Run(context.Background()))
		var streamErr *Error
		if !errors.As(err, &streamErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if streamErr.Stage != "flat-map-async" {
			t.Errorf("expected stage flat-map-async, got %q", streamErr.Stage)
		}
		if !errors.Is(err, boom) {
			t.Errorf("expected boom in chain, got %v", err)
		}
	})

	t.Run("Nil Task Fails Stream", func(t *testing.T) {
		src := FlatMapAsync(From(1), func(int) (*Task[int], error) {
			return nil, nil
		})
		err := awaitFailure(t, src.ToList().Run(context.Background()))
		var streamErr *Error
		if !errors.As(err, &streamErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
	})

	t.Run("Stream Cancel Cancels Pending Task", func(t *testing.T) {
		pending := NewTask[int]()
		started := make(chan struct{})
		src := FlatMapAsync(From(1), func(int) (*Task[int], error) {
			close(started)
			return pending, nil
		})
		result := src.ToList().Run(context.Background())

		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("element never reached the async stage")
		}
		result.Cancel()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := pending.Await(ctx); !errors.Is(err, ErrCanceled) {
			t.Errorf("pending task should be canceled with the stream, got %v", err)
		}
		if _, err := result.Await(ctx); !errors.Is(err, ErrCanceled) {
			t.Errorf("expected ErrCanceled from the stream, got %v", err)
		}
	})
}
