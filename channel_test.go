package flowz

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestFromChannel(t *testing.T) {
	t.Run("Streams Until Channel Close", func(t *testing.T) {
		ch := make(chan int)
		go func() {
			for _, v := range []int{1, 2, 3} {
				ch <- v
			}
			close(ch)
		}()

		got := awaitResult(t, FromChannel(ch).ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{1, 2, 3}) {
			t.Errorf("expected [1 2 3], got %v", got)
		}
	})

	t.Run("Closed Channel Completes Empty", func(t *testing.T) {
		ch := make(chan int)
		close(ch)
		got := awaitResult(t, FromChannel(ch).ToList().Run(context.Background()))
		if len(got) != 0 {
			t.Errorf("expected empty, got %v", got)
		}
	})

	t.Run("Context Cancel Unblocks A Starved Stream", func(t *testing.T) {
		ch := make(chan int) // never written
		ctx, cancel := context.WithCancel(context.Background())
		task := FromChannel(ch).ToList().Run(ctx)

		cancel()
		err := awaitFailure(t, task)
		if !errors.Is(err, ErrCanceled) {
			t.Errorf("expected ErrCanceled, got %v", err)
		}
	})

	t.Run("Operators Apply Downstream", func(t *testing.T) {
		ch := make(chan int)
		go func() {
			for v := 1; v <= 6; v++ {
				ch <- v
			}
			close(ch)
		}()

		src := FromChannel(ch).Filter(func(v int) (bool, error) {
			return v%2 == 0, nil
		})
		got := awaitResult(t, src.ToList().Run(context.Background()))
		if !reflect.DeepEqual(got, []int{2, 4, 6}) {
			t.Errorf("expected [2 4 6], got %v", got)
		}
	})

	t.Run("Nil Channel Panics", func(t *testing.T) {
		mustPanic(t, "flowz: nil channel", func() {
			FromChannel[int](nil)
		})
	})
}

func TestToChannel(t *testing.T) {
	t.Run("Delivers And Leaves Channel Open", func(t *testing.T) {
		ch := make(chan int)
		task := To(From(1, 2, 3), ToChannel(ch)).Run(context.Background())

		var got []int
		for i := 0; i < 3; i++ {
			select {
			case v := <-ch:
				got = append(got, v)
			case <-time.After(time.Second):
				t.Fatal("element never arrived")
			}
		}
		awaitResult(t, task)

		if !reflect.DeepEqual(got, []int{1, 2, 3}) {
			t.Errorf("expected [1 2 3], got %v", got)
		}
		// The caller owns the channel; completion must not close it.
		select {
		case v, ok := <-ch:
			if !ok {
				t.Error("caller-owned channel should stay open")
			} else {
				t.Errorf("unexpected extra element %v", v)
			}
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("Consumer Paces The Source", func(t *testing.T) {
		var consumed int32
		var mu sync.Mutex

		ch := make(chan int)
		task := To(From(1, 2, 3, 4, 5).Peek(func(int) error {
			mu.Lock()
			consumed++
			mu.Unlock()
			return nil
		}), ToChannel(ch)).Run(context.Background())

		// With nobody receiving, exactly one element is pulled through:
		// it sits in the blocked send, and no further demand is issued.
		time.Sleep(100 * time.Millisecond)
		mu.Lock()
		stalled := consumed
		mu.Unlock()
		if stalled != 1 {
			t.Errorf("expected 1 element in flight while blocked, got %d", stalled)
		}

		for i := 0; i < 5; i++ {
			select {
			case <-ch:
			case <-time.After(time.Second):
				t.Fatal("element never arrived")
			}
		}
		awaitResult(t, task)

		mu.Lock()
		defer mu.Unlock()
		if consumed != 5 {
			t.Errorf("expected all 5 consumed, got %d", consumed)
		}
	})

	t.Run("Nil Channel Panics", func(t *testing.T) {
		mustPanic(t, "flowz: nil channel", func() {
			ToChannel[int](nil)
		})
	})
}

func TestRunChannel(t *testing.T) {
	t.Run("Channel Closes After Last Element", func(t *testing.T) {
		ch, task := From(1, 2, 3).RunChannel(context.Background())

		var got []int
		for v := range ch {
			got = append(got, v)
		}
		if !reflect.DeepEqual(got, []int{1, 2, 3}) {
			t.Errorf("expected [1 2 3], got %v", got)
		}
		awaitResult(t, task)
	})

	t.Run("Failure Closes Channel And Fails Task", func(t *testing.T) {
		boom := errors.New("boom")
		ch, task := Failed[int](boom).RunChannel(context.Background())

		for range ch {
			t.Error("no element should arrive")
		}
		err := awaitFailure(t, task)
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("Mid Stream Failure Delivers Prefix", func(t *testing.T) {
		boom := errors.New("boom")
		src := Map(From(1, 2, 3), func(v int) (int, error) {
			if v == 3 {
				return 0, boom
			}
			return v, nil
		})
		ch, task := src.RunChannel(context.Background())

		var got []int
		for v := range ch {
			got = append(got, v)
		}
		if !reflect.DeepEqual(got, []int{1, 2}) {
			t.Errorf("expected the prefix [1 2], got %v", got)
		}
		if err := awaitFailure(t, task); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("Cancel Stops Delivery", func(t *testing.T) {
		ch := make(chan int)
		go func() {
			ch <- 1
			// Keep the channel open; the stream must end via cancel.
		}()
		out, task := FromChannel(ch).RunChannel(context.Background())

		select {
		case v := <-out:
			if v != 1 {
				t.Fatalf("expected 1, got %d", v)
			}
		case <-time.After(time.Second):
			t.Fatal("element never arrived")
		}

		task.Cancel()
		if err := awaitFailure(t, task); !errors.Is(err, ErrCanceled) {
			t.Errorf("expected ErrCanceled, got %v", err)
		}

		// The output channel is released too.
		select {
		case _, ok := <-out:
			if ok {
				t.Error("no further element should arrive")
			}
		case <-time.After(time.Second):
			t.Fatal("output channel never closed")
		}
	})
}
