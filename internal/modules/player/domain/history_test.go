package domain

import "testing"

func TestHistory_PushPopLast(t *testing.T) {
	h := NewHistory(10)
	h.Push(track("a"))
	h.Push(track("b"))

	got, ok := h.PopLast()
	if !ok || got.Title != "b" {
		t.Fatalf("expected most recent track %q, got %v", "b", got)
	}

	got, ok = h.PopLast()
	if !ok || got.Title != "a" {
		t.Fatalf("expected track %q, got %v", "a", got)
	}

	if _, ok := h.PopLast(); ok {
		t.Error("expected empty history")
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(2)
	h.Push(track("a"))
	h.Push(track("b"))
	h.Push(track("c"))

	if h.Len() != 2 {
		t.Fatalf("expected capacity 2, got %d", h.Len())
	}

	list := h.List()
	if list[0].Title != "b" || list[1].Title != "c" {
		t.Errorf("expected [b c], got %v", titles(list))
	}
}

func TestHistory_DefaultCapacity(t *testing.T) {
	h := NewHistory(0)
	for range DefaultHistoryCapacity + 5 {
		h.Push(track("x"))
	}

	if h.Len() != DefaultHistoryCapacity {
		t.Errorf("expected %d entries, got %d", DefaultHistoryCapacity, h.Len())
	}
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory(10)
	h.Push(track("a"))
	h.Clear()

	if !h.IsEmpty() {
		t.Error("expected empty history after clear")
	}
}
