package reactive

import (
	"testing"

	"github.com/reactive-lang/reactive/internal/value"
)

// fakeEvaluator lets tests control exactly what a reactive expression
// evaluates to and which locations it reports reading, without needing a
// real VM.
type fakeEvaluator struct {
	calls int
	eval  func(exprID int, capturedEnv interface{}) (value.Value, map[value.Location]uint64, error)
}

func (f *fakeEvaluator) EvalTracked(exprID int, capturedEnv interface{}) (value.Value, map[value.Location]uint64, error) {
	f.calls++
	return f.eval(exprID, capturedEnv)
}

func TestLazyEvaluationOnlyOnFirstRead(t *testing.T) {
	fe := &fakeEvaluator{eval: func(int, interface{}) (value.Value, map[value.Location]uint64, error) {
		return value.Int(42), map[value.Location]uint64{}, nil
	}}
	clock := &value.Clock{}
	e := New(fe, clock)
	slot := value.NewReactiveSlot(1, nil)

	if fe.calls != 0 {
		t.Fatal("must not evaluate before first read")
	}
	versions := func(value.Location) uint64 { return 0 }

	v, err := e.Read(slot, versions)
	if err != nil || v.I != 42 {
		t.Fatalf("got %v, %v", v, err)
	}
	if fe.calls != 1 {
		t.Fatalf("expected 1 evaluation, got %d", fe.calls)
	}

	if _, err := e.Read(slot, versions); err != nil {
		t.Fatal(err)
	}
	if fe.calls != 1 {
		t.Fatalf("expected cache hit (still 1 evaluation), got %d", fe.calls)
	}
}

func TestReevaluatesWhenDependencyVersionChanges(t *testing.T) {
	loc := value.Location{Kind: value.LocScope, ScopeID: 1, SlotIdx: 0}
	result := int32(1)
	fe := &fakeEvaluator{eval: func(int, interface{}) (value.Value, map[value.Location]uint64, error) {
		return value.Int(result), map[value.Location]uint64{loc: 1}, nil
	}}
	clock := &value.Clock{}
	clock.Tick()
	e := New(fe, clock)
	slot := value.NewReactiveSlot(1, nil)

	depVersion := uint64(1)
	versions := func(l value.Location) uint64 {
		if l == loc {
			return depVersion
		}
		return 0
	}

	if _, err := e.Read(slot, versions); err != nil {
		t.Fatal(err)
	}
	if fe.calls != 1 {
		t.Fatalf("expected 1 evaluation, got %d", fe.calls)
	}

	depVersion = 2
	result = 99
	v, err := e.Read(slot, versions)
	if err != nil {
		t.Fatal(err)
	}
	if fe.calls != 2 {
		t.Fatalf("expected re-evaluation after dependency changed, got %d calls", fe.calls)
	}
	if v.I != 99 {
		t.Errorf("got %v, want 99", v)
	}
}

func TestReactiveCycleDetected(t *testing.T) {
	clock := &value.Clock{}
	var e *Engine
	var slotA *value.Slot

	fe := &fakeEvaluator{}
	fe.eval = func(int, interface{}) (value.Value, map[value.Location]uint64, error) {
		// Evaluating A re-enters A itself.
		v, err := e.Read(slotA, func(value.Location) uint64 { return 0 })
		return v, nil, err
	}
	e = New(fe, clock)
	slotA = value.NewReactiveSlot(1, nil)

	if _, err := e.Read(slotA, func(value.Location) uint64 { return 0 }); err == nil {
		t.Fatal("expected ReactiveCycle error")
	}
}
