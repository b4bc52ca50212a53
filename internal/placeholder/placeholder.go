// Package placeholder renders chat message templates.
//
// A template is plain text containing literal tokens such as {node}.
// Render replaces every occurrence of each token with its value, one
// placeholder at a time and in the order given. Values are not escaped:
// a value that contains another placeholder's key is substituted again by
// that later placeholder.
package placeholder

import "strings"

type Placeholder interface {
	Key() string
	Value() string
}

// Pair is the plain Placeholder implementation.
type Pair struct {
	K string
	V string
}

func (p Pair) Key() string   { return p.K }
func (p Pair) Value() string { return p.V }

// Render applies ps to format in order over the progressively rewritten string.
func Render(format string, ps ...Placeholder) string {
	out := format
	for _, p := range ps {
		if p == nil || p.Key() == "" {
			continue
		}
		out = strings.ReplaceAll(out, p.Key(), p.Value())
	}
	return out
}

const (
	KeyChannel       = "{channel_name}"
	KeyAuthor        = "{author}"
	KeyNode          = "{node}"
	KeyPlanet        = "{planet}"
	KeyDifficulty    = "{difficulty}"
	KeyItemName      = "{item_name}"
	KeyAverage       = "{average}"
	KeyMovingAverage = "{moving_average}"
	KeyAmountSold    = "{amount_sold}"
)

func Channel(name string) Pair  { return Pair{K: KeyChannel, V: name} }
func Author(name string) Pair   { return Pair{K: KeyAuthor, V: name} }
func Node(label string) Pair    { return Pair{K: KeyNode, V: label} }
func Planet(name string) Pair   { return Pair{K: KeyPlanet, V: name} }
func ItemName(name string) Pair { return Pair{K: KeyItemName, V: name} }
func Average(v string) Pair     { return Pair{K: KeyAverage, V: v} }
func AmountSold(v string) Pair  { return Pair{K: KeyAmountSold, V: v} }

// MovingAverage renders "unknown" when v is empty.
func MovingAverage(v string) Pair {
	if v == "" {
		v = "unknown"
	}
	return Pair{K: KeyMovingAverage, V: v}
}

// Difficulty renders the fissure difficulty shown to chat.
func Difficulty(isHard bool) Pair {
	if isHard {
		return Pair{K: KeyDifficulty, V: "Steel Path"}
	}
	return Pair{K: KeyDifficulty, V: "Normal"}
}
