package flowz

import (
	"errors"
	"testing"

	"go.uber.org/multierr"
)

func TestGraphValidate(t *testing.T) {
	t.Run("Empty Graph", func(t *testing.T) {
		err := graph{shape: ClosedShape}.validate()
		if !errors.Is(err, ErrEmptyGraph) {
			t.Errorf("expected ErrEmptyGraph, got %v", err)
		}
	})

	t.Run("Valid Closed Graph", func(t *testing.T) {
		g := graph{
			stages: []stage{
				sliceSourceStage{name: nameFrom},
				mapStage{name: nameMap},
				valueSinkStage{},
			},
			shape: ClosedShape,
		}
		if err := g.validate(); err != nil {
			t.Errorf("expected valid graph, got %v", err)
		}
	})

	t.Run("Missing Ends Reported Together", func(t *testing.T) {
		g := graph{
			stages: []stage{mapStage{name: nameMap}},
			shape:  ClosedShape,
		}
		err := g.validate()
		if !errors.Is(err, ErrMissingSource) {
			t.Errorf("expected ErrMissingSource in %v", err)
		}
		if !errors.Is(err, ErrMissingSink) {
			t.Errorf("expected ErrMissingSink in %v", err)
		}
		if got := len(multierr.Errors(err)); got != 2 {
			t.Errorf("expected both problems collected, got %d: %v", got, err)
		}
	})

	t.Run("Misplaced Source Stage", func(t *testing.T) {
		g := graph{
			stages: []stage{
				sliceSourceStage{name: nameFrom},
				sliceSourceStage{name: nameFrom},
				valueSinkStage{},
			},
			shape: ClosedShape,
		}
		if err := g.validate(); !errors.Is(err, ErrMisplacedStage) {
			t.Errorf("expected ErrMisplacedStage, got %v", err)
		}
	})

	t.Run("Pipe Shape Needs Neither End", func(t *testing.T) {
		g := graph{
			stages: []stage{mapStage{name: nameMap}},
			shape:  PipeShape,
		}
		if err := g.validate(); err != nil {
			t.Errorf("expected valid pipe graph, got %v", err)
		}
	})
}

func TestChain(t *testing.T) {
	t.Run("Push Is Persistent", func(t *testing.T) {
		base := (*chain)(nil).push(sliceSourceStage{name: nameFrom})
		left := base.push(mapStage{name: nameMap})
		right := base.push(filterStage{name: nameFilter})

		if got := len(base.stages()); got != 1 {
			t.Errorf("base should keep 1 stage, got %d", got)
		}
		leftStages := left.stages()
		rightStages := right.stages()
		if len(leftStages) != 2 || len(rightStages) != 2 {
			t.Fatalf("derived chains should have 2 stages, got %d and %d", len(leftStages), len(rightStages))
		}
		if leftStages[1].stageName() != nameMap {
			t.Errorf("expected map on the left branch, got %q", leftStages[1].stageName())
		}
		if rightStages[1].stageName() != nameFilter {
			t.Errorf("expected filter on the right branch, got %q", rightStages[1].stageName())
		}
	})

	t.Run("Nil Chain Has No Stages", func(t *testing.T) {
		if got := (*chain)(nil).stages(); len(got) != 0 {
			t.Errorf("expected no stages, got %d", len(got))
		}
	})
}
