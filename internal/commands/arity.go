package commands

import "fmt"

type arityKind uint8

const (
	arityVariadic arityKind = iota
	arityFixed
	arityMinimum
	arityRange
)

// Arity is the accepted argument count of a command.
type Arity struct {
	kind   arityKind
	lo, hi int
}

func Fixed(n int) Arity      { return Arity{kind: arityFixed, lo: n, hi: n} }
func Minimum(n int) Arity    { return Arity{kind: arityMinimum, lo: n} }
func Range(lo, hi int) Arity { return Arity{kind: arityRange, lo: lo, hi: hi} }
func Variadic() Arity        { return Arity{kind: arityVariadic} }

// Check returns a ClientError describing the mismatch, or nil.
func (a Arity) Check(n int) error {
	switch a.kind {
	case arityFixed:
		if n != a.lo {
			return Clientf("This command should have %d %s!", a.lo, plural(a.lo))
		}
	case arityMinimum:
		if n < a.lo {
			return Clientf("This command needs at least %d %s!", a.lo, plural(a.lo))
		}
	case arityRange:
		if n < a.lo || n > a.hi {
			return Clientf("This command takes between %d and %d arguments!", a.lo, a.hi)
		}
	}
	return nil
}

func (a Arity) String() string {
	switch a.kind {
	case arityFixed:
		return fmt.Sprintf("fixed(%d)", a.lo)
	case arityMinimum:
		return fmt.Sprintf("min(%d)", a.lo)
	case arityRange:
		return fmt.Sprintf("range(%d,%d)", a.lo, a.hi)
	}
	return "variadic"
}

func plural(n int) string {
	if n == 1 {
		return "argument"
	}
	return "arguments"
}
