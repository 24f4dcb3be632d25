package flowz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestError(t *testing.T) {
	t.Run("Message Includes Stage And Element", func(t *testing.T) {
		err := &Error{
			Stage:   "map",
			Element: 42,
			Err:     errors.New("boom"),
		}
		msg := err.Error()
		if !strings.Contains(msg, `"map"`) {
			t.Errorf("expected the stage in %q", msg)
		}
		if !strings.Contains(msg, "42") {
			t.Errorf("expected the element in %q", msg)
		}
		if !strings.Contains(msg, "boom") {
			t.Errorf("expected the cause in %q", msg)
		}
	})

	t.Run("Message Without Element", func(t *testing.T) {
		err := &Error{Stage: "collect", Err: errors.New("boom")}
		msg := err.Error()
		if strings.Contains(msg, "element") {
			t.Errorf("no element context expected in %q", msg)
		}
	})

	t.Run("Unwrap Exposes The Cause", func(t *testing.T) {
		boom := errors.New("boom")
		err := &Error{Stage: "filter", Err: fmt.Errorf("wrapped: %w", boom)}
		if !errors.Is(err, boom) {
			t.Error("errors.Is should see through the wrapping")
		}
	})

	t.Run("IsCanceled Matches Both Cancellation Causes", func(t *testing.T) {
		if !(&Error{Err: ErrCanceled}).IsCanceled() {
			t.Error("ErrCanceled should report canceled")
		}
		if !(&Error{Err: context.Canceled}).IsCanceled() {
			t.Error("context.Canceled should report canceled")
		}
		if (&Error{Err: errors.New("boom")}).IsCanceled() {
			t.Error("an ordinary failure is not canceled")
		}
	})

	t.Run("Wrapping Preserves The Original Stage", func(t *testing.T) {
		now := time.Now()
		inner := newStreamError("map", 7, errors.New("boom"), now)
		outer := newStreamError("collect", nil, inner, now)
		if outer != inner {
			t.Error("an existing stream error should pass through unchanged")
		}
		if outer.Stage != "map" {
			t.Errorf("expected the original stage, got %q", outer.Stage)
		}
	})

	t.Run("Recovered Panics Become Errors", func(t *testing.T) {
		err := recoverToError("kaboom")
		if err == nil || !strings.Contains(err.Error(), "kaboom") {
			t.Errorf("expected the panic value in the error, got %v", err)
		}

		cause := errors.New("boom")
		err = recoverToError(cause)
		if !errors.Is(err, cause) {
			t.Errorf("an error panic value should stay unwrappable, got %v", err)
		}
	})

	t.Run("Failing Stage Survives The Whole Chain", func(t *testing.T) {
		boom := errors.New("boom")
		src := Map(Map(From(1), func(int) (int, error) {
			return 0, boom
		}), func(v int) (int, error) {
			return v, nil
		})

		err := awaitFailure(t, src.ToList().Run(context.Background()))
		var streamErr *Error
		if !errors.As(err, &streamErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if streamErr.Stage != "map" {
			t.Errorf("expected the failing stage, got %q", streamErr.Stage)
		}
		if streamErr.Timestamp.IsZero() {
			t.Error("stream errors should be timestamped")
		}
		if streamErr.IsCanceled() {
			t.Error("a user failure is not a cancellation")
		}
	})
}

func TestShape(t *testing.T) {
	cases := []struct {
		shape Shape
		want  string
	}{
		{SourceShape, "source"},
		{PipeShape, "pipe"},
		{SinkShape, "sink"},
		{ClosedShape, "closed"},
	}
	for _, tc := range cases {
		if got := tc.shape.String(); got != tc.want {
			t.Errorf("shape %d: expected %q, got %q", int(tc.shape), got, tc.want)
		}
	}
}
