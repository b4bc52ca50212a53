package commands

import (
	"strconv"
	"strings"
)

// Filters narrow down market statistics. Only the mod rank filter ("r3")
// exists today.
type Filters struct {
	ModRank *uint8
}

// ParseFilters parses the text after "||" in a command. Tokens are
// whitespace separated and the first character selects the filter. A
// repeated filter keeps the last value.
func ParseFilters(input string) (Filters, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Filters{}, Client("Signalled filter, but filters are empty")
	}

	var f Filters
	for _, tok := range strings.Fields(input) {
		switch tok[0] {
		case 'r':
			raw := tok[1:]
			if raw == "" {
				return Filters{}, Client(`Expected numbers after the "r"`)
			}
			n, err := strconv.ParseUint(raw, 10, 8)
			if err != nil {
				return Filters{}, Clientf("%s is not a number!", raw)
			}
			rank := uint8(n)
			f.ModRank = &rank
		default:
			return Filters{}, Clientf("Invalid filter: %s", tok)
		}
	}
	return f, nil
}
