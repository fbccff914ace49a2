package session

import (
	"testing"

	"github.com/espenbo/sparkedge/internal/domain"
)

func snap(pairs ...any) *domain.Snapshot {
	s := domain.NewSnapshot()
	for i := 0; i < len(pairs); i += 2 {
		s.Set(pairs[i].(string), pairs[i+1].(domain.Value))
	}
	return s
}

func TestDiffIdenticalIsEmpty(t *testing.T) {
	a := snap(
		"cpu", domain.DoubleVal(42.0),
		"mem", domain.IntVal(domain.Int64, 1024),
	)
	if d := Diff(a, a.Clone()); d.Len() != 0 {
		t.Fatalf("expected empty diff, got %d entries", d.Len())
	}
}

func TestDiffAgainstEmptyIsFull(t *testing.T) {
	cur := snap(
		"cpu", domain.DoubleVal(42.0),
		"mem", domain.IntVal(domain.Int64, 1024),
	)

	d := Diff(nil, cur)
	if d.Len() != cur.Len() {
		t.Fatalf("expected full snapshot (%d), got %d", cur.Len(), d.Len())
	}
	d = Diff(domain.NewSnapshot(), cur)
	if d.Len() != cur.Len() {
		t.Fatalf("expected full snapshot against empty prev, got %d", d.Len())
	}
}

func TestDiffContainsOnlyChangedKeys(t *testing.T) {
	prev := snap(
		"cpu", domain.DoubleVal(42.0),
		"mem", domain.IntVal(domain.Int64, 1024),
		"node", domain.StrVal("edge-01"),
	)
	cur := snap(
		"cpu", domain.DoubleVal(55.0),
		"mem", domain.IntVal(domain.Int64, 1024),
		"fan", domain.IntVal(domain.Int64, 3200),
	)

	d := Diff(prev, cur)
	if d.Len() != 2 {
		t.Fatalf("expected 2 changed keys, got %d", d.Len())
	}
	if v, ok := d.Get("cpu"); !ok || v.Float != 55.0 {
		t.Fatalf("expected changed cpu=55.0, got %+v ok=%v", v, ok)
	}
	if _, ok := d.Get("fan"); !ok {
		t.Fatalf("expected new key fan in diff")
	}
	// Keys only in prev are not carried forward; the protocol has no delete.
	if _, ok := d.Get("node"); ok {
		t.Fatalf("expected removed key node to be absent from diff")
	}
}

func TestDiffFloatEqualityIsExact(t *testing.T) {
	prev := snap("cpu", domain.DoubleVal(42.0))
	cur := snap("cpu", domain.DoubleVal(42.0000000001))
	if d := Diff(prev, cur); d.Len() != 1 {
		t.Fatalf("expected exact float comparison to flag the change")
	}
}

func TestDiffTypeChangeIsAChange(t *testing.T) {
	prev := snap("v", domain.IntVal(domain.Int64, 1))
	cur := snap("v", domain.UintVal(domain.UInt64, 1))
	if d := Diff(prev, cur); d.Len() != 1 {
		t.Fatalf("expected a retype to count as a change")
	}
}

func TestDiffPreservesInsertionOrder(t *testing.T) {
	prev := snap("a", domain.IntVal(domain.Int64, 1))
	cur := snap(
		"z", domain.IntVal(domain.Int64, 1),
		"a", domain.IntVal(domain.Int64, 2),
		"m", domain.IntVal(domain.Int64, 3),
	)

	d := Diff(prev, cur)
	names := d.Names()
	if len(names) != 3 || names[0] != "z" || names[1] != "a" || names[2] != "m" {
		t.Fatalf("expected diff to keep current snapshot order, got %v", names)
	}
}
