package flowz

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

// Focused benchmarks for flowz - stream spin-up cost and steady-state throughput.

// BenchmarkMaterialization measures the fixed cost of launching a stream:
// validation, executor construction and goroutine teardown.
func BenchmarkMaterialization(b *testing.B) {
	ctx := context.Background()
	engine := NewEngine()
	defer engine.Close() //nolint:errcheck // benchmark teardown

	b.Run("Empty", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := Empty[int]().Ignore().Run(ctx, On(engine)).Await(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("SingleElement", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := From(1).Ignore().Run(ctx, On(engine)).Await(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("TenStages", func(b *testing.B) {
		source := From(1).
			Filter(func(int) (bool, error) { return true, nil }).
			Filter(func(int) (bool, error) { return true, nil }).
			Filter(func(int) (bool, error) { return true, nil }).
			Filter(func(int) (bool, error) { return true, nil }).
			Filter(func(int) (bool, error) { return true, nil }).
			Filter(func(int) (bool, error) { return true, nil }).
			Filter(func(int) (bool, error) { return true, nil }).
			Filter(func(int) (bool, error) { return true, nil })
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := source.Ignore().Run(ctx, On(engine)).Await(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkThroughput measures per-element cost once a stream is running.
// Each iteration pushes a fixed batch through the full signal protocol.
func BenchmarkThroughput(b *testing.B) {
	ctx := context.Background()
	engine := NewEngine()
	defer engine.Close() //nolint:errcheck // benchmark teardown

	input := make([]int, 1000)
	for i := range input {
		input[i] = i
	}

	b.Run("Passthrough/1000", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := FromSlice(input).Ignore().Run(ctx, On(engine)).Await(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Map/1000", func(b *testing.B) {
		source := Map(FromSlice(input), func(n int) (int, error) { return n * 2, nil })
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := source.Ignore().Run(ctx, On(engine)).Await(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("MapFilterReduce/1000", func(b *testing.B) {
		runner := Reduce(
			Map(FromSlice(input), func(n int) (int, error) { return n + 1, nil }).
				Filter(func(n int) (bool, error) { return n%2 == 0, nil }),
			0,
			func(acc, n int) (int, error) { return acc + n, nil },
		)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := runner.Run(ctx, On(engine)).Await(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("FlatMap/100x10", func(b *testing.B) {
		ten := make([]int, 10)
		source := FlatMapSlice(FromSlice(input[:100]), func(int) ([]int, error) {
			return ten, nil
		})
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := source.Ignore().Run(ctx, On(engine)).Await(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkErrorPath measures failure propagation, which allocates a stream
// error per run.
func BenchmarkErrorPath(b *testing.B) {
	ctx := context.Background()
	engine := NewEngine()
	boom := errors.New("benchmark error")

	b.Run("SourceFailure", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := Failed[int](boom).Ignore().Run(ctx, On(engine)).Await(ctx); err == nil {
				b.Fatal("expected failure")
			}
		}
	})

	b.Run("MidStreamFailure", func(b *testing.B) {
		source := Map(FromSlice([]int{1, 2, 3}), func(n int) (string, error) {
			if n == 3 {
				return "", boom
			}
			return strconv.Itoa(n), nil
		})
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := source.Ignore().Run(ctx, On(engine)).Await(ctx); err == nil {
				b.Fatal("expected failure")
			}
		}
	})
}
