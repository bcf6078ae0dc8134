// Package reconcile keeps a live text surface synchronized with target
// text arriving as monotonically increasing word-position updates.
//
// The engine is a two-state machine. A session begins with the output
// surface displaying the full baseline text. The first update computes
// the minimal edit: one deletion burst trimming the surface back to the
// longest common prefix with the target text truncated at the update's
// position, followed by one insertion; baseline slots trimmed off
// beyond that position re-enter later through gap fill or Flush. Every
// later update is insert-only: baseline slots skipped by the update
// stream are filled in verbatim (gap fill) and the update's own content
// appended. A session therefore issues at most one deletion, and text
// at or before the synchronized-through cursor is final for the
// session's lifetime.
//
// All lengths are measured in runes; no operation ever splits a UTF-8
// sequence.
package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrOutOfOrder reports an update whose position does not exceed the
// synchronized-through cursor. The record is dropped and session state
// is unchanged; later, correctly ordered records continue to apply.
var ErrOutOfOrder = errors.New("update position not beyond cursor")

// Engine applies word updates to a sink, reconciling the visible
// surface with the evolving target text.
//
// Engine is not safe for concurrent use; the host must serialize
// Reset, Apply, and Flush.
type Engine struct {
	base    Baseline
	sink    Sink
	applied map[int]string
	cursor  int
	started bool
}

// NewEngine creates an engine writing to sink, with an empty baseline.
func NewEngine(sink Sink) *Engine {
	return &Engine{
		sink:    sink,
		applied: make(map[int]string),
	}
}

// Reset replaces the baseline and begins a new session. Any prior
// session is abandoned silently, without flushing.
func (e *Engine) Reset(base Baseline) {
	e.base = base
	e.applied = make(map[int]string)
	e.cursor = 0
	e.started = false
}

// Cursor returns the synchronized-through position. The boolean is
// false until the first update of the session has been applied.
func (e *Engine) Cursor() (int, bool) {
	return e.cursor, e.started
}

// Apply processes one update record.
//
// The first record of a session triggers the single corrective
// deletion; subsequent records are insert-only with gap fill. A record
// whose position does not exceed the cursor returns ErrOutOfOrder and
// leaves all state untouched.
func (e *Engine) Apply(pos int, text string) error {
	if !e.started {
		return e.applyFirst(pos, text)
	}
	return e.applyNext(pos, text)
}

// applyFirst computes the session's single corrective edit. The
// surface is assumed to display the entire baseline text; everything
// after its longest common prefix with the target through pos is
// deleted, and trimmed slots beyond pos re-enter via gap fill or
// Flush.
func (e *Engine) applyFirst(pos int, text string) error {
	var visible, target strings.Builder
	seen := false
	for _, p := range e.base.positions {
		c := e.base.content[p]
		visible.WriteString(c)
		if p > pos {
			continue
		}
		if p == pos {
			target.WriteString(text)
			seen = true
		} else {
			target.WriteString(c)
		}
	}
	if !seen {
		// pos is not a baseline slot; it sorts after every baseline
		// position <= pos, so its content goes last.
		target.WriteString(text)
	}

	vis, tgt := visible.String(), target.String()
	prefix := commonPrefixBytes(vis, tgt)

	if del := utf8.RuneCountInString(vis[prefix:]); del > 0 {
		if err := e.sink.Delete(del); err != nil {
			return fmt.Errorf("corrective delete: %w", err)
		}
	}
	if ins := tgt[prefix:]; ins != "" {
		if err := e.sink.Insert(ins); err != nil {
			return fmt.Errorf("corrective insert: %w", err)
		}
	}

	e.applied[pos] = text
	e.cursor = pos
	e.started = true
	return nil
}

// applyNext gap-fills baseline slots between the cursor and pos, then
// appends the update's content. No deletion is ever issued here.
func (e *Engine) applyNext(pos int, text string) error {
	if pos <= e.cursor {
		return fmt.Errorf("position %d with cursor %d: %w", pos, e.cursor, ErrOutOfOrder)
	}

	for _, p := range e.base.positions {
		if p <= e.cursor {
			continue
		}
		if p >= pos {
			break
		}
		if _, overwritten := e.applied[p]; overwritten {
			continue
		}
		if c := e.base.content[p]; c != "" {
			if err := e.sink.Insert(c); err != nil {
				return fmt.Errorf("gap fill at %d: %w", p, err)
			}
		}
	}

	if text != "" {
		if err := e.sink.Insert(text); err != nil {
			return fmt.Errorf("insert at %d: %w", pos, err)
		}
	}

	e.applied[pos] = text
	e.cursor = pos
	return nil
}

// Flush emits every remaining baseline slot beyond the cursor that was
// not overwritten by an update this session, completing the surface.
//
// A session that applied no updates flushes nothing: the baseline is
// assumed already fully displayed. Flush is idempotent.
func (e *Engine) Flush() error {
	if !e.started {
		return nil
	}

	for _, p := range e.base.positions {
		if p <= e.cursor {
			continue
		}
		if _, overwritten := e.applied[p]; overwritten {
			continue
		}
		if c := e.base.content[p]; c != "" {
			if err := e.sink.Insert(c); err != nil {
				return fmt.Errorf("flush at %d: %w", p, err)
			}
		}
	}

	if max := e.base.Max(); max > e.cursor {
		e.cursor = max
	}
	return nil
}

// Text returns the session's target text: the baseline with every
// applied update overlaid, concatenated in ascending position order.
func (e *Engine) Text() string {
	var sb strings.Builder
	for _, p := range e.mergedPositions() {
		if text, ok := e.applied[p]; ok {
			sb.WriteString(text)
		} else {
			sb.WriteString(e.base.content[p])
		}
	}
	return sb.String()
}

// Snapshot returns the target text as a position-to-content mapping,
// suitable as the baseline of a follow-on session. Slots deleted by an
// empty update are omitted.
func (e *Engine) Snapshot() map[int]string {
	m := make(map[int]string, e.base.Len()+len(e.applied))
	for _, p := range e.mergedPositions() {
		text, ok := e.applied[p]
		if !ok {
			text = e.base.content[p]
		}
		if text != "" {
			m[p] = text
		}
	}
	return m
}

// mergedPositions returns the union of baseline and applied positions,
// ascending.
func (e *Engine) mergedPositions() []int {
	merged := make([]int, 0, e.base.Len()+len(e.applied))
	extra := make([]int, 0, len(e.applied))
	for p := range e.applied {
		if _, ok := e.base.content[p]; !ok {
			extra = append(extra, p)
		}
	}
	merged = append(merged, e.base.positions...)
	merged = append(merged, extra...)
	sort.Ints(merged)
	return merged
}

// commonPrefixBytes returns the byte length of the longest common
// prefix of a and b that ends on a rune boundary.
func commonPrefixBytes(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) {
		ra, sa := utf8.DecodeRuneInString(a[n:])
		rb, sb := utf8.DecodeRuneInString(b[n:])
		if ra != rb || sa != sb {
			break
		}
		n += sa
	}
	return n
}
