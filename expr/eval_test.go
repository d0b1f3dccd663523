package expr

import (
	"errors"
	"testing"

	"github.com/devzendo/transputer-asm/ident"
)

type fakeEnv struct {
	n    *ident.Normalizer
	vals map[string]int32
}

func newFakeEnv(vals map[string]int32) *fakeEnv {
	return &fakeEnv{n: ident.NewNormalizer(false), vals: vals}
}

func (f *fakeEnv) Normalizer() *ident.Normalizer { return f.n }

func (f *fakeEnv) Lookup(name ident.Name) (int32, bool) {
	for k, v := range f.vals {
		if f.n.NewName(k).Key() == name.Key() {
			return v, true
		}
	}
	return 0, false
}

func TestEvaluateArithmetic(t *testing.T) {
	env := newFakeEnv(map[string]int32{"X": 10})

	e := Binary{Op: Add, Left: SymbolRef{Name: "X"}, Right: IntLiteral{Value: 5}}
	v, err := Evaluate(e, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 15 {
		t.Fatalf("expected 15, got %d", v)
	}
}

func TestEvaluateDivisionTruncatesTowardZero(t *testing.T) {
	env := newFakeEnv(nil)
	e := Binary{Op: Div, Left: IntLiteral{Value: -7}, Right: IntLiteral{Value: 2}}
	v, err := Evaluate(e, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != -3 {
		t.Fatalf("expected -3 (truncated toward zero), got %d", v)
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	env := newFakeEnv(nil)
	e := SymbolRef{Name: "MISSING"}

	_, err := Evaluate(e, env)
	var undef *UndefinedError
	if !errors.As(err, &undef) {
		t.Fatalf("expected *UndefinedError, got %v (%T)", err, err)
	}
	if len(undef.Names) != 1 {
		t.Fatalf("expected exactly one undefined name, got %d", len(undef.Names))
	}
}

func TestEvaluateCharacterLiteralRejected(t *testing.T) {
	env := newFakeEnv(nil)
	_, err := Evaluate(CharLiteral{Chars: "A"}, env)
	var charErr *CharacterError
	if !errors.As(err, &charErr) {
		t.Fatalf("expected *CharacterError, got %v (%T)", err, err)
	}
}

func TestEvaluateRawOffsetIsProgrammerError(t *testing.T) {
	env := newFakeEnv(nil)
	_, err := Evaluate(Unary{Op: Offset, Operand: IntLiteral{Value: 1}}, env)
	var offErr *RawOffsetError
	if !errors.As(err, &offErr) {
		t.Fatalf("expected *RawOffsetError, got %v (%T)", err, err)
	}
}

func TestEvaluateOffsetFrom(t *testing.T) {
	env := newFakeEnv(map[string]int32{"L1": 0x104})
	e := Unary{Op: OffsetFrom, Operand: SymbolRef{Name: "L1"}, Anchor: 0x100}
	v, err := Evaluate(e, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 4 {
		t.Fatalf("expected 4, got %d", v)
	}
}

func TestFindUndefineds(t *testing.T) {
	env := newFakeEnv(map[string]int32{"A": 1})
	e := Binary{Op: Add, Left: SymbolRef{Name: "A"}, Right: SymbolRef{Name: "B"}}

	undef := FindUndefineds(e, env)
	if len(undef) != 1 {
		t.Fatalf("expected 1 undefined name, got %d", len(undef))
	}
	if _, ok := undef[env.Normalizer().NewName("B")]; !ok {
		t.Fatalf("expected B to be undefined")
	}
}

func TestEvaluateEnvironmentExtensionInvariant(t *testing.T) {
	// evaluate(e, E) == evaluate(e, E') for any E' that extends E
	// without redefining names e uses.
	e := Binary{Op: Mul, Left: SymbolRef{Name: "A"}, Right: IntLiteral{Value: 3}}

	e1 := newFakeEnv(map[string]int32{"A": 7})
	e2 := newFakeEnv(map[string]int32{"A": 7, "B": 99})

	v1, err1 := Evaluate(e, e1)
	v2, err2 := Evaluate(e, e2)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if v1 != v2 {
		t.Fatalf("expected equal results under environment extension, got %d vs %d", v1, v2)
	}
}
