package reconcile

import (
	"sort"
	"strings"
)

// Baseline is an immutable snapshot of the word slots already present
// on the output surface when a session begins. Positions need not be
// contiguous; iteration is always in ascending position order.
type Baseline struct {
	positions []int
	content   map[int]string
}

// NewBaseline builds a baseline from a position-to-content mapping.
// The mapping is copied; insertion order is irrelevant.
func NewBaseline(m map[int]string) Baseline {
	b := Baseline{
		positions: make([]int, 0, len(m)),
		content:   make(map[int]string, len(m)),
	}
	for pos, text := range m {
		b.positions = append(b.positions, pos)
		b.content[pos] = text
	}
	sort.Ints(b.positions)
	return b
}

// BaselineFromText splits text into whitespace-delimited words and
// assigns positions step, 2*step, 3*step, ... Every word except the
// last carries a trailing space, so concatenating the slots
// reconstructs the text. This matches the slot numbering the remote
// process is prompted with.
func BaselineFromText(text string, step int) Baseline {
	if step <= 0 {
		step = DefaultStep
	}
	words := strings.Fields(text)
	m := make(map[int]string, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			w += " "
		}
		m[(i+1)*step] = w
	}
	return NewBaseline(m)
}

// DefaultStep is the conventional gap between adjacent word positions,
// leaving room for the remote process to insert words between slots.
const DefaultStep = 10

// Positions returns the slot positions in ascending order. The caller
// must not modify the returned slice.
func (b Baseline) Positions() []int {
	return b.positions
}

// Content returns the content at pos and whether the slot exists.
func (b Baseline) Content(pos int) (string, bool) {
	text, ok := b.content[pos]
	return text, ok
}

// Len returns the number of slots.
func (b Baseline) Len() int {
	return len(b.positions)
}

// Max returns the highest position, or 0 for an empty baseline.
func (b Baseline) Max() int {
	if len(b.positions) == 0 {
		return 0
	}
	return b.positions[len(b.positions)-1]
}

// Text concatenates all slot content in ascending position order.
func (b Baseline) Text() string {
	var sb strings.Builder
	for _, pos := range b.positions {
		sb.WriteString(b.content[pos])
	}
	return sb.String()
}

// Mapping returns a copy of the position-to-content mapping.
func (b Baseline) Mapping() map[int]string {
	m := make(map[int]string, len(b.content))
	for pos, text := range b.content {
		m[pos] = text
	}
	return m
}
