package reconcile

import (
	"reflect"
	"testing"
)

func TestNewBaseline_SortsPositions(t *testing.T) {
	b := NewBaseline(map[int]string{30: "c ", 10: "a ", 20: "b "})

	if got := b.Positions(); !reflect.DeepEqual(got, []int{10, 20, 30}) {
		t.Errorf("Positions = %v", got)
	}
	if got := b.Text(); got != "a b c " {
		t.Errorf("Text = %q", got)
	}
	if got := b.Max(); got != 30 {
		t.Errorf("Max = %d", got)
	}
}

func TestNewBaseline_Empty(t *testing.T) {
	b := NewBaseline(nil)
	if b.Len() != 0 || b.Max() != 0 || b.Text() != "" {
		t.Errorf("empty baseline: Len=%d Max=%d Text=%q", b.Len(), b.Max(), b.Text())
	}
}

func TestBaselineFromText(t *testing.T) {
	b := BaselineFromText("I will go home", 10)

	want := map[int]string{10: "I ", 20: "will ", 30: "go ", 40: "home"}
	if got := b.Mapping(); !reflect.DeepEqual(got, want) {
		t.Errorf("Mapping = %v, want %v", got, want)
	}
	if got := b.Text(); got != "I will go home" {
		t.Errorf("Text = %q", got)
	}
}

func TestBaselineFromText_CollapsesWhitespace(t *testing.T) {
	b := BaselineFromText("  one \n two  ", 10)
	want := map[int]string{10: "one ", 20: "two"}
	if got := b.Mapping(); !reflect.DeepEqual(got, want) {
		t.Errorf("Mapping = %v, want %v", got, want)
	}
}

func TestBaseline_Content(t *testing.T) {
	b := NewBaseline(map[int]string{10: "a "})
	if text, ok := b.Content(10); !ok || text != "a " {
		t.Errorf("Content(10) = %q, %v", text, ok)
	}
	if _, ok := b.Content(99); ok {
		t.Error("Content(99) should not exist")
	}
}
