package domain

import (
	"sync"
	"testing"
)

func track(title string) *Track {
	return &Track{Title: title, PageURL: "https://example.com/" + title}
}

func titles(tracks []*Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Title
	}
	return out
}

func TestQueue_AppendPopOrder(t *testing.T) {
	q := NewQueue()
	q.Append(track("a"), track("b"), track("c"))

	if q.Len() != 3 {
		t.Fatalf("expected 3 tracks, got %d", q.Len())
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.PopFront()
		if !ok {
			t.Fatalf("expected track %q, queue was empty", want)
		}
		if got.Title != want {
			t.Errorf("expected %q, got %q", want, got.Title)
		}
	}

	if _, ok := q.PopFront(); ok {
		t.Error("expected empty queue after draining")
	}
}

func TestQueue_PushFront(t *testing.T) {
	q := NewQueue()
	q.Append(track("b"))
	q.PushFront(track("a"))

	got, _ := q.PopFront()
	if got.Title != "a" {
		t.Errorf("expected front track %q, got %q", "a", got.Title)
	}
}

func TestQueue_RemoveAt(t *testing.T) {
	tests := []struct {
		name      string
		index     int
		wantOK    bool
		wantTitle string
		wantLeft  int
	}{
		{name: "first", index: 0, wantOK: true, wantTitle: "a", wantLeft: 2},
		{name: "middle", index: 1, wantOK: true, wantTitle: "b", wantLeft: 2},
		{name: "last", index: 2, wantOK: true, wantTitle: "c", wantLeft: 2},
		{name: "negative", index: -1, wantOK: false, wantLeft: 3},
		{name: "past end", index: 3, wantOK: false, wantLeft: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			q.Append(track("a"), track("b"), track("c"))

			got, ok := q.RemoveAt(tt.index)
			if ok != tt.wantOK {
				t.Fatalf("RemoveAt(%d) ok = %v, want %v", tt.index, ok, tt.wantOK)
			}
			if ok && got.Title != tt.wantTitle {
				t.Errorf("removed %q, want %q", got.Title, tt.wantTitle)
			}
			if q.Len() != tt.wantLeft {
				t.Errorf("queue length = %d, want %d", q.Len(), tt.wantLeft)
			}
		})
	}
}

func TestQueue_Move(t *testing.T) {
	tests := []struct {
		name      string
		from, to  int
		wantOK    bool
		wantOrder []string
	}{
		{name: "forward", from: 0, to: 2, wantOK: true, wantOrder: []string{"b", "c", "a"}},
		{name: "backward", from: 2, to: 0, wantOK: true, wantOrder: []string{"c", "a", "b"}},
		{name: "same position", from: 1, to: 1, wantOK: true, wantOrder: []string{"a", "b", "c"}},
		{name: "from out of range", from: 3, to: 0, wantOK: false, wantOrder: []string{"a", "b", "c"}},
		{name: "to out of range", from: 0, to: 3, wantOK: false, wantOrder: []string{"a", "b", "c"}},
		{name: "negative from", from: -1, to: 0, wantOK: false, wantOrder: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			q.Append(track("a"), track("b"), track("c"))

			_, ok := q.Move(tt.from, tt.to)
			if ok != tt.wantOK {
				t.Fatalf("Move(%d, %d) ok = %v, want %v", tt.from, tt.to, ok, tt.wantOK)
			}

			got := titles(q.List())
			for i, want := range tt.wantOrder {
				if got[i] != want {
					t.Fatalf("order = %v, want %v", got, tt.wantOrder)
				}
			}
		})
	}
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue()
	q.Append(track("a"), track("b"))
	q.Clear()

	if !q.IsEmpty() {
		t.Errorf("expected empty queue after clear, got %d tracks", q.Len())
	}
}

func TestQueue_ListReturnsCopy(t *testing.T) {
	q := NewQueue()
	q.Append(track("a"))

	list := q.List()
	list[0] = track("mutated")

	if got := q.List()[0].Title; got != "a" {
		t.Errorf("queue was mutated through List copy: %q", got)
	}
}

func TestQueue_ConcurrentProducersSingleConsumer(t *testing.T) {
	q := NewQueue()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				q.Append(track("x"))
			}
		}()
	}

	popped := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for popped < 1000 {
			if _, ok := q.PopFront(); ok {
				popped++
			}
		}
	}()

	wg.Wait()
	<-done

	if q.Len() != 0 {
		t.Errorf("expected drained queue, got %d left", q.Len())
	}
}
