package reconcile

import (
	"errors"
	"reflect"
	"testing"
	"unicode/utf8"
)

// apply applies updates to a fresh engine over base and returns the
// recorder and engine.
func apply(t *testing.T, base map[int]string, updates ...[2]any) (*Recorder, *Engine) {
	t.Helper()
	rec := &Recorder{}
	e := NewEngine(rec)
	e.Reset(NewBaseline(base))
	for _, u := range updates {
		if err := e.Apply(u[0].(int), u[1].(string)); err != nil {
			t.Fatalf("Apply(%v, %q): %v", u[0], u[1], err)
		}
	}
	return rec, e
}

// surface replays recorded ops from the given starting text,
// reproducing what the output surface would display. The start is the
// full baseline text, which is what the surface shows when the
// session's single deletion is computed.
func surface(t *testing.T, start string, ops []Op) string {
	t.Helper()
	text := []rune(start)
	for _, op := range ops {
		if op.Delete > 0 {
			if op.Delete > len(text) {
				t.Fatalf("delete %d exceeds surface %q", op.Delete, string(text))
			}
			text = text[:len(text)-op.Delete]
		}
		text = append(text, []rune(op.Insert)...)
	}
	return string(text)
}

// =============================================================================
// First update: minimal edit
// =============================================================================

func TestApply_FirstUpdateDeletion(t *testing.T) {
	base := map[int]string{10: "Hello ", 20: "world "}
	rec, _ := apply(t, base, [2]any{20, "universe "})

	want := []Op{{Delete: 6}, {Insert: "universe "}}
	if !reflect.DeepEqual(rec.Ops, want) {
		t.Errorf("ops = %v, want %v", rec.Ops, want)
	}
	if got := surface(t, "Hello world ", rec.Ops); got != "Hello universe " {
		t.Errorf("surface = %q", got)
	}
}

func TestApply_FirstUpdateNoOp(t *testing.T) {
	base := map[int]string{10: "Hello ", 20: "world "}
	rec, e := apply(t, base, [2]any{20, "world "})

	if len(rec.Ops) != 0 {
		t.Errorf("no-op update issued ops: %v", rec.Ops)
	}
	if cur, ok := e.Cursor(); !ok || cur != 20 {
		t.Errorf("cursor = %d, %v; want 20, true", cur, ok)
	}
}

func TestApply_FirstUpdateBeyondBaseline(t *testing.T) {
	base := map[int]string{10: "Hello "}
	rec, _ := apply(t, base, [2]any{20, "world"})

	want := []Op{{Insert: "world"}}
	if !reflect.DeepEqual(rec.Ops, want) {
		t.Errorf("ops = %v, want %v", rec.Ops, want)
	}
}

func TestApply_FirstUpdateEmptyBaseline(t *testing.T) {
	rec, _ := apply(t, nil, [2]any{10, "fresh "})

	want := []Op{{Insert: "fresh "}}
	if !reflect.DeepEqual(rec.Ops, want) {
		t.Errorf("ops = %v, want %v", rec.Ops, want)
	}
}

func TestApply_FirstUpdateMinimalDeletion(t *testing.T) {
	// Only the suffix after the common prefix may be deleted.
	base := map[int]string{10: "The ", 20: "quick ", 30: "brown "}
	rec, _ := apply(t, base, [2]any{30, "bright "})

	// visible "The quick brown ", target "The quick bright ";
	// common prefix "The quick br" leaves 4 runes to delete.
	want := []Op{{Delete: 4}, {Insert: "ight "}}
	if !reflect.DeepEqual(rec.Ops, want) {
		t.Errorf("ops = %v, want %v", rec.Ops, want)
	}
}

func TestApply_DeletionCountedInRunes(t *testing.T) {
	base := map[int]string{10: "héllo "}
	rec, _ := apply(t, base, [2]any{10, "héllö "})

	want := []Op{{Delete: 2}, {Insert: "ö "}}
	if !reflect.DeepEqual(rec.Ops, want) {
		t.Errorf("ops = %v, want %v", rec.Ops, want)
	}
}

// TestApply_NeverSplitsRunes verifies the prefix boundary always lands
// between runes even when byte prefixes diverge mid-sequence.
func TestApply_NeverSplitsRunes(t *testing.T) {
	base := map[int]string{10: "日本"}
	rec, _ := apply(t, base, [2]any{10, "日韓"})

	want := []Op{{Delete: 1}, {Insert: "韓"}}
	if !reflect.DeepEqual(rec.Ops, want) {
		t.Errorf("ops = %v, want %v", rec.Ops, want)
	}
	for _, op := range rec.Ops {
		if !utf8.ValidString(op.Insert) {
			t.Errorf("insert splits a rune: %q", op.Insert)
		}
	}
}

// =============================================================================
// Subsequent updates: gap fill
// =============================================================================

func TestApply_GapFill(t *testing.T) {
	base := map[int]string{10: "I ", 20: "will ", 30: "go ", 40: "home "}
	rec, e := apply(t, base, [2]any{20, "might "}, [2]any{40, "there "})

	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := surface(t, "I will go home ", rec.Ops); got != "I might go there " {
		t.Errorf("surface = %q, want %q", got, "I might go there ")
	}
}

func TestApply_GapFillEmitsBetweenCursorAndRecord(t *testing.T) {
	base := map[int]string{10: "a ", 20: "b ", 30: "c ", 40: "d "}
	rec, _ := apply(t, base, [2]any{10, "A "}, [2]any{40, "D "})

	// The first update trims the whole diverging suffix "a b c d ";
	// slots 20 and 30 come back through gap fill.
	want := []Op{
		{Delete: 8}, {Insert: "A "},
		{Insert: "b "}, {Insert: "c "}, // gap fill, ascending
		{Insert: "D "},
	}
	if !reflect.DeepEqual(rec.Ops, want) {
		t.Errorf("ops = %v, want %v", rec.Ops, want)
	}
}

func TestApply_EmptyContentRemovesWord(t *testing.T) {
	base := map[int]string{10: "The ", 20: "quick ", 30: "fox "}
	rec, e := apply(t, base, [2]any{20, ""})

	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := surface(t, "The quick fox ", rec.Ops); got != "The fox " {
		t.Errorf("surface = %q, want %q", got, "The fox ")
	}
}

func TestApply_SingleDeletionPerSession(t *testing.T) {
	base := map[int]string{10: "a ", 20: "b ", 30: "c ", 40: "d "}
	rec, e := apply(t, base,
		[2]any{10, "x "}, [2]any{20, "y "}, [2]any{30, "z "}, [2]any{40, "w "})
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	deletions := 0
	for i, op := range rec.Ops {
		if op.Delete > 0 {
			deletions++
			if i != 0 {
				t.Errorf("deletion at op %d; only the first op may delete", i)
			}
		}
	}
	if deletions != 1 {
		t.Errorf("deletions = %d, want 1", deletions)
	}
}

// =============================================================================
// Ordering violations
// =============================================================================

func TestApply_OutOfOrderRejected(t *testing.T) {
	base := map[int]string{10: "a ", 20: "b "}
	rec, e := apply(t, base, [2]any{20, "B "})
	before := len(rec.Ops)

	err := e.Apply(20, "again ")
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("err = %v, want ErrOutOfOrder", err)
	}
	if len(rec.Ops) != before {
		t.Errorf("rejected record issued ops: %v", rec.Ops[before:])
	}
	if cur, _ := e.Cursor(); cur != 20 {
		t.Errorf("cursor moved to %d", cur)
	}
}

func TestApply_SessionContinuesAfterOutOfOrder(t *testing.T) {
	base := map[int]string{10: "a ", 20: "b ", 30: "c "}
	rec, e := apply(t, base, [2]any{20, "B "})

	if err := e.Apply(10, "late "); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("err = %v, want ErrOutOfOrder", err)
	}
	if err := e.Apply(30, "C "); err != nil {
		t.Fatalf("Apply after rejection: %v", err)
	}
	if got := surface(t, "a b c ", rec.Ops); got != "a B C " {
		t.Errorf("surface = %q, want %q", got, "a B C ")
	}
}

// =============================================================================
// Flush
// =============================================================================

func TestFlush_WithoutUpdatesEmitsNothing(t *testing.T) {
	rec := &Recorder{}
	e := NewEngine(rec)
	e.Reset(NewBaseline(map[int]string{10: "already ", 20: "shown "}))

	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(rec.Ops) != 0 {
		t.Errorf("update-less flush issued ops: %v", rec.Ops)
	}
}

func TestFlush_Idempotent(t *testing.T) {
	base := map[int]string{10: "a ", 20: "b ", 30: "c "}
	rec, e := apply(t, base, [2]any{10, "A "})

	if err := e.Flush(); err != nil {
		t.Fatalf("first Flush: %v", err)
	}
	after := len(rec.Ops)
	if err := e.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if len(rec.Ops) != after {
		t.Errorf("second flush issued ops: %v", rec.Ops[after:])
	}
}

func TestFlush_SkipsOverwrittenSlots(t *testing.T) {
	base := map[int]string{10: "a ", 20: "b "}
	rec, e := apply(t, base, [2]any{10, "A "})
	rec.Take()

	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := []Op{{Insert: "b "}}
	if !reflect.DeepEqual(rec.Ops, want) {
		t.Errorf("flush ops = %v, want %v", rec.Ops, want)
	}
}

// =============================================================================
// Session text and snapshots
// =============================================================================

func TestText_OverlaysUpdates(t *testing.T) {
	base := map[int]string{10: "I ", 20: "will ", 30: "go "}
	_, e := apply(t, base, [2]any{20, "might "})

	if got := e.Text(); got != "I might go " {
		t.Errorf("Text = %q", got)
	}
}

func TestText_IncludesInsertedSlots(t *testing.T) {
	base := map[int]string{10: "one ", 30: "three "}
	_, e := apply(t, base, [2]any{10, "one "}, [2]any{20, "two "})

	if got := e.Text(); got != "one two three " {
		t.Errorf("Text = %q", got)
	}
}

func TestSnapshot_OmitsDeletedSlots(t *testing.T) {
	base := map[int]string{10: "The ", 20: "quick ", 30: "fox "}
	_, e := apply(t, base, [2]any{20, ""})

	want := map[int]string{10: "The ", 30: "fox "}
	if got := e.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot = %v, want %v", got, want)
	}
}

func TestReset_ClearsSession(t *testing.T) {
	base := map[int]string{10: "a "}
	rec, e := apply(t, base, [2]any{10, "A "})
	rec.Take()

	e.Reset(NewBaseline(map[int]string{10: "x ", 20: "y "}))
	if _, ok := e.Cursor(); ok {
		t.Fatal("cursor defined after reset")
	}
	// A new session gets its own single deletion.
	if err := e.Apply(20, "z "); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []Op{{Delete: 2}, {Insert: "z "}}
	if !reflect.DeepEqual(rec.Ops, want) {
		t.Errorf("ops = %v, want %v", rec.Ops, want)
	}
}
