// Package fidelity describes how faithfully a best-effort operation
// produced its result.
package fidelity

import "fmt"

// Level is the degradation level of a result.
type Level int

const (
	// Exact means the result was produced by the primary path with no
	// information loss.
	Exact Level = iota
	// Heuristic means part of the result was reconstructed by guessing.
	Heuristic
	// Fallback means the operation gave up and returned a placeholder or
	// its input.
	Fallback
)

func (l Level) String() string {
	switch l {
	case Exact:
		return "exact"
	case Heuristic:
		return "heuristic"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Worse returns the weaker of two levels.
func Worse(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "exact":
		*l = Exact
	case "heuristic":
		*l = Heuristic
	case "fallback":
		*l = Fallback
	default:
		return fmt.Errorf("fidelity: unknown level %q", b)
	}
	return nil
}
