package placeholder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		format string
		ps     []Placeholder
		want   string
	}{
		{
			name:   "single",
			format: "hi {channel_name}",
			ps:     []Placeholder{Channel("tenno")},
			want:   "hi tenno",
		},
		{
			name:   "repeated key",
			format: "{node} {node}",
			ps:     []Placeholder{Node("Hydron (Sedna)")},
			want:   "Hydron (Sedna) Hydron (Sedna)",
		},
		{
			name:   "missing key left alone",
			format: "{planet} at {node}",
			ps:     []Placeholder{Node("Casta (Ceres)")},
			want:   "{planet} at Casta (Ceres)",
		},
		{
			name:   "difficulty",
			format: "{difficulty}",
			ps:     []Placeholder{Difficulty(true)},
			want:   "Steel Path",
		},
		{
			name:   "moving average unknown",
			format: "{moving_average}",
			ps:     []Placeholder{MovingAverage("")},
			want:   "unknown",
		},
		{
			name:   "nil and empty keys skipped",
			format: "{author}",
			ps:     []Placeholder{nil, Pair{}, Author("someone")},
			want:   "someone",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.format, tt.ps...))
		})
	}
}

func TestRenderWithoutKeysIsIdentity(t *testing.T) {
	t.Parallel()
	formats := []string{"", "plain text", "{unknown} token", "{ node }"}
	for _, f := range formats {
		once := Render(f, Channel("a"), Author("b"), Node("c"))
		assert.Equal(t, f, once)
		assert.Equal(t, once, Render(once, Channel("a"), Author("b"), Node("c")))
	}
}

func TestRenderLaterPassSeesEarlierValues(t *testing.T) {
	t.Parallel()
	// A value that contains another key is substituted by the later placeholder.
	got := Render("{item_name}", ItemName("{author}'s item"), Author("ordis"))
	assert.Equal(t, "ordis's item", got)

	// Applied in the other order the key survives.
	got = Render("{item_name}", Author("ordis"), ItemName("{author}'s item"))
	assert.Equal(t, "{author}'s item", got)
}

func TestTwoPassRender(t *testing.T) {
	t.Parallel()
	format := "@{channel_name} new S-Tier Arbitration: {node} on {planet}"
	first := Render(format, Node("Casta"), Planet("Ceres"))
	got := Render(first, Channel("tenno"))
	assert.Equal(t, "@tenno new S-Tier Arbitration: Casta on Ceres", got)
}
