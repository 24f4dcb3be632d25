package flowz

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"sync"
	"testing"
)

func TestPipe(t *testing.T) {
	t.Run("Through Applies A Pipe To A Source", func(t *testing.T) {
		pipe := PipeMap(NewPipe[int]().Filter(func(v int) (bool, error) {
			return v%2 == 0, nil
		}), func(v int) (int, error) {
			return v * 10, nil
		})

		got := awaitResult(t, Through(From(1, 2, 3, 4), pipe).ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{20, 40}) {
			t.Errorf("expected [20 40], got %v", got)
		}
	})

	t.Run("Identity Pipe Passes Everything", func(t *testing.T) {
		got := awaitResult(t, Through(From(1, 2), NewPipe[int]()).ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{1, 2}) {
			t.Errorf("expected [1 2], got %v", got)
		}
	})

	t.Run("Pipe Can Change The Element Type", func(t *testing.T) {
		pipe := PipeMap(NewPipe[int](), func(v int) (string, error) {
			return strconv.Itoa(v), nil
		})
		got := awaitResult(t, Through(From(7, 8), pipe).ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []string{"7", "8"}) {
			t.Errorf("expected [7 8], got %v", got)
		}
	})

	t.Run("Pipes Compose With PipeThrough", func(t *testing.T) {
		first := NewPipe[int]().Filter(func(v int) (bool, error) {
			return v > 1, nil
		})
		second := PipeMap(NewPipe[int](), func(v int) (int, error) {
			return v + 100, nil
		})
		combined := PipeThrough(first, second)

		got := awaitResult(t, Through(From(1, 2, 3), combined).ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{102, 103}) {
			t.Errorf("expected [102 103], got %v", got)
		}
	})

	t.Run("PipeTo Splices A Sink", func(t *testing.T) {
		evens := NewPipe[int]().Filter(func(v int) (bool, error) {
			return v%2 == 0, nil
		})
		sink := PipeTo(evens, NewPipe[int]().ToList())

		got := awaitResult(t, To(From(1, 2, 3, 4), sink).Run(context.Background()))
		if !reflect.DeepEqual(got, []int{2, 4}) {
			t.Errorf("expected [2 4], got %v", got)
		}
	})

	t.Run("Pipe Reductions Terminate Into Sinks", func(t *testing.T) {
		sink := PipeReduce(NewPipe[int](), 0, func(acc, v int) (int, error) {
			return acc + v, nil
		})
		got := awaitResult(t, To(From(1, 2, 3), sink).Run(context.Background()))
		if got != 6 {
			t.Errorf("expected 6, got %d", got)
		}
	})

	t.Run("Pipe ForEach Sink Observes Elements", func(t *testing.T) {
		var seen []int
		var mu sync.Mutex
		sink := NewPipe[int]().ForEach(func(v int) error {
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
			return nil
		})

		awaitResult(t, To(From(4, 5), sink).Run(context.Background()))
		mu.Lock()
		defer mu.Unlock()
		if !reflect.DeepEqual(seen, []int{4, 5}) {
			t.Errorf("expected [4 5], got %v", seen)
		}
	})

	t.Run("Pipe Builders Are Reusable", func(t *testing.T) {
		base := NewPipe[int]().Filter(func(v int) (bool, error) {
			return v > 0, nil
		})
		limited := base.Limit(1)
		mapped := PipeMap(base, func(v int) (int, error) { return -v, nil })

		if got := awaitResult(t, Through(From(1, 2), limited).ToList().Run(context.Background())); !reflect.DeepEqual(got, []int{1}) {
			t.Errorf("expected [1], got %v", got)
		}
		if got := awaitResult(t, Through(From(1, 2), mapped).ToList().Run(context.Background())); !reflect.DeepEqual(got, []int{-1, -2}) {
			t.Errorf("expected [-1 -2], got %v", got)
		}
		if got := awaitResult(t, Through(From(1, 2), base).ToList().Run(context.Background())); !reflect.DeepEqual(got, []int{1, 2}) {
			t.Errorf("expected the base pipe untouched, got %v", got)
		}
	})

	t.Run("Errors Cross Pipe Boundaries", func(t *testing.T) {
		boom := errors.New("boom")
		pipe := PipeMap(NewPipe[int](), func(v int) (int, error) {
			if v == 2 {
				return 0, boom
			}
			return v, nil
		})
		err := awaitFailure(t, Through(From(1, 2, 3), pipe).ToList().Run(context.Background()))
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("Nil Pipe Panics", func(t *testing.T) {
		mustPanic(t, "flowz: nil pipe", func() {
			Through[int, int](From(1), nil)
		})
	})
}
