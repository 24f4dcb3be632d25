package flowz

// Descriptor constructors and type-erasure plumbing shared by the Source
// and Pipe builders. Stateful operators (limit, skip, drop-while) erase to
// predicate factories rather than predicates, so every materialization of
// the same descriptor starts with fresh counters.

func eraseMap[T, R any](fn func(T) (R, error)) func(any) (any, error) {
	return func(v any) (any, error) {
		mapped, err := fn(v.(T))
		if err != nil {
			return nil, err
		}
		return mapped, nil
	}
}

func eraseAsync[T, R any](fn func(T) (*Task[R], error)) func(any) (asyncValue, error) {
	return func(v any) (asyncValue, error) {
		task, err := fn(v.(T))
		if err != nil {
			return nil, err
		}
		if task == nil {
			return nil, errNilTask
		}
		return &taskValue[R]{task: task}, nil
	}
}

func eraseSlice[T, R any](fn func(T) ([]R, error)) func(any) ([]any, error) {
	return func(v any) ([]any, error) {
		items, err := fn(v.(T))
		if err != nil {
			return nil, err
		}
		erased := make([]any, len(items))
		for i, item := range items {
			erased[i] = item
		}
		return erased, nil
	}
}

// erasePredicate wraps a stateless predicate as a factory.
func erasePredicate[T any](pred func(T) (bool, error)) func() func(any) (bool, error) {
	erased := func(v any) (bool, error) {
		return pred(v.(T))
	}
	return func() func(any) (bool, error) {
		return erased
	}
}

func limitStage(n int) takeWhileStage {
	if n < 0 {
		panic("flowz: negative limit")
	}
	if n == 0 {
		return takeWhileStage{
			name: nameLimit,
			predicate: func() func(any) (bool, error) {
				return func(any) (bool, error) { return false, nil }
			},
		}
	}
	return takeWhileStage{
		name: nameLimit,
		predicate: func() func(any) (bool, error) {
			count := 0
			return func(any) (bool, error) {
				count++
				return count < n, nil
			}
		},
		inclusive: true,
	}
}

func skipStage(n int) filterStage {
	if n < 0 {
		panic("flowz: negative skip")
	}
	return filterStage{
		name: nameSkip,
		predicate: func() func(any) (bool, error) {
			seen := 0
			return func(any) (bool, error) {
				if seen < n {
					seen++
					return false, nil
				}
				return true, nil
			}
		},
	}
}

func dropWhilePredicate[T any](pred func(T) (bool, error)) func() func(any) (bool, error) {
	return func() func(any) (bool, error) {
		dropping := true
		return func(v any) (bool, error) {
			if !dropping {
				return true, nil
			}
			drop, err := pred(v.(T))
			if err != nil {
				return false, err
			}
			if drop {
				return false, nil
			}
			dropping = false
			return true, nil
		}
	}
}

func identityFinisher(acc any) (any, error) {
	return acc, nil
}

func toListStage[T any]() collectStage {
	return collectStage{
		name: nameToList,
		supplier: func() (any, error) {
			return make([]T, 0), nil
		},
		accumulator: func(acc, element any) (any, error) {
			return append(acc.([]T), element.(T)), nil
		},
		finisher: identityFinisher,
	}
}

func findFirstStageFor[T any]() findFirstStage {
	return findFirstStage{
		wrap: func(element any, present bool) any {
			if present {
				return OptionalOf(element.(T))
			}
			return OptionalEmpty[T]()
		},
	}
}

func reduceStage[T, S any](identity S, acc func(S, T) (S, error), combiner func(S, S) S) collectStage {
	st := collectStage{
		name: nameReduce,
		supplier: func() (any, error) {
			return identity, nil
		},
		accumulator: func(a, element any) (any, error) {
			next, err := acc(a.(S), element.(T))
			if err != nil {
				return nil, err
			}
			return next, nil
		},
		finisher: identityFinisher,
	}
	if combiner != nil {
		st.combiner = func(a, b any) any {
			return combiner(a.(S), b.(S))
		}
	}
	return st
}

func collectorStage[T, A, S any](c Collector[T, A, S]) collectStage {
	if c.Supplier == nil {
		panic("flowz: nil supplier")
	}
	if c.Accumulator == nil {
		panic("flowz: nil accumulator")
	}
	st := collectStage{
		name: nameCollect,
		supplier: func() (any, error) {
			acc, err := c.Supplier()
			if err != nil {
				return nil, err
			}
			return acc, nil
		},
		accumulator: func(acc, element any) (any, error) {
			next, err := c.Accumulator(acc.(A), element.(T))
			if err != nil {
				return nil, err
			}
			return next, nil
		},
		finisher: identityFinisher,
	}
	if c.Finisher != nil {
		st.finisher = func(acc any) (any, error) {
			result, err := c.Finisher(acc.(A))
			if err != nil {
				return nil, err
			}
			return result, nil
		}
	}
	if c.Combiner != nil {
		st.combiner = func(a, b any) any {
			return c.Combiner(a.(A), b.(A))
		}
	}
	return st
}
