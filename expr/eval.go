package expr

import (
	"fmt"

	"github.com/devzendo/transputer-asm/ident"
)

// Environment resolves symbol names to values. model.AssemblyModel
// implements this interface; it is kept minimal here so expr has no
// dependency on model (avoiding an import cycle).
type Environment interface {
	Lookup(name ident.Name) (int32, bool)
	Normalizer() *ident.Normalizer
}

// UndefinedError is returned by Evaluate when one or more symbol names
// referenced by the expression are not currently defined in env.
type UndefinedError struct {
	Names map[ident.Name]struct{}
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("undefined symbols (%d)", len(e.Names))
}

// CharacterError is returned when a CharLiteral is evaluated as an
// integer expression — character data must be expanded to per-character
// numerics by the storage allocator before reaching the evaluator.
type CharacterError struct{}

func (e *CharacterError) Error() string {
	return "cannot evaluate characters as integer"
}

// RawOffsetError is a precondition violation: a raw Offset placeholder
// must be rewritten to OffsetFrom by the transformer chain before
// evaluation is ever attempted.
type RawOffsetError struct{}

func (e *RawOffsetError) Error() string {
	return "internal error: evaluated an unrewritten Offset expression"
}

// FindUndefineds returns the set of symbol names expr references that
// are not currently defined in env.
func FindUndefineds(e Expression, env Environment) map[ident.Name]struct{} {
	out := make(map[ident.Name]struct{})
	collectUndefineds(e, env, out)
	return out
}

func collectUndefineds(e Expression, env Environment, out map[ident.Name]struct{}) {
	switch n := e.(type) {
	case IntLiteral, CharLiteral:
		return
	case SymbolRef:
		name := env.Normalizer().NewName(n.Name)
		if _, ok := env.Lookup(name); !ok {
			out[name] = struct{}{}
		}
	case Unary:
		collectUndefineds(n.Operand, env, out)
	case Binary:
		collectUndefineds(n.Left, env, out)
		collectUndefineds(n.Right, env, out)
	default:
		panic(fmt.Sprintf("expr: unknown expression type %T", e))
	}
}

// Evaluate evaluates e against env. If any referenced symbol is
// undefined, it returns *UndefinedError naming all of them (not just
// the first). Otherwise it evaluates with the strict-defined invariant
// and cannot fail on symbol lookup.
func Evaluate(e Expression, env Environment) (int32, error) {
	if undef := FindUndefineds(e, env); len(undef) > 0 {
		return 0, &UndefinedError{Names: undef}
	}
	return evalStrict(e, env)
}

func evalStrict(e Expression, env Environment) (int32, error) {
	switch n := e.(type) {
	case IntLiteral:
		return n.Value, nil

	case CharLiteral:
		return 0, &CharacterError{}

	case SymbolRef:
		name := env.Normalizer().NewName(n.Name)
		v, ok := env.Lookup(name)
		if !ok {
			// Precondition violation: FindUndefineds should have
			// caught this already.
			return 0, fmt.Errorf("internal error: symbol %q vanished between undefined-check and evaluation", n.Name)
		}
		return v, nil

	case Unary:
		if n.Op == Offset {
			return 0, &RawOffsetError{}
		}
		v, err := evalStrict(n.Operand, env)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case Negate:
			return -v, nil
		case Not:
			return ^v, nil
		case OffsetFrom:
			return v - n.Anchor, nil
		default:
			panic(fmt.Sprintf("expr: unknown unary op %v", n.Op))
		}

	case Binary:
		l, err := evalStrict(n.Left, env)
		if err != nil {
			return 0, err
		}
		r, err := evalStrict(n.Right, env)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case Add:
			return l + r, nil
		case Sub:
			return l - r, nil
		case Mul:
			return l * r, nil
		case Div:
			if r == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return l / r, nil
		case Shl:
			return l << uint32(r&31), nil
		case Shar:
			return l >> uint32(r&31), nil
		case And:
			return l & r, nil
		case Or:
			return l | r, nil
		case Xor:
			return l ^ r, nil
		default:
			panic(fmt.Sprintf("expr: unknown binary op %v", n.Op))
		}

	default:
		panic(fmt.Sprintf("expr: unknown expression type %T", e))
	}
}
