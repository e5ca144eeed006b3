package shared

import (
	"testing"

	"github.com/f4os-go/corertos/internal/constants"
)

func TestDequeFIFOOrder(t *testing.T) {
	d := NewDeque[string]()
	d.Add("Message 1")
	d.Add("Message 2")
	d.Add("Message 3")

	for _, want := range []string{"Message 1", "Message 2", "Message 3"} {
		got, ok := d.Pop()
		if !ok || got != want {
			t.Fatalf("Pop = %q, %v; want %q", got, ok, want)
		}
	}
	if _, ok := d.Pop(); ok {
		t.Fatal("expected Pop on empty deque to report false")
	}
}

// TestDequeProducerDeath supplements original_source/usr/shell/shared_deq_test.c's
// t1/t2 scenario: a task finds the deque empty, appends a farewell
// message, then dies (here: simply stops running, as abort() does in the
// original). The message it left behind must still be visible to the
// next consumer — the deque's internal lock must not be left held
// across the producer's death.
func TestDequeProducerDeath(t *testing.T) {
	d := NewDeque[string]()

	if _, ok := d.Pop(); ok {
		t.Fatal("expected empty deque")
	}
	d.Add("Goodbye from T1!")
	// Producer "aborts" here; nothing further touches the deque on its
	// behalf. The deque must remain usable.

	got, ok := d.Pop()
	if !ok || got != "Goodbye from T1!" {
		t.Fatalf("Pop after producer death = %q, %v", got, ok)
	}
	if d.Len() != 0 {
		t.Fatalf("expected deque empty after drain, Len() = %d", d.Len())
	}
}

func TestDequeLenTracksAddAndPop(t *testing.T) {
	d := NewDeque[int]()
	for i := 0; i < 5; i++ {
		d.Add(i)
	}
	if d.Len() != 5 {
		t.Fatalf("expected Len() == 5, got %d", d.Len())
	}
	d.Pop()
	d.Pop()
	if d.Len() != 3 {
		t.Fatalf("expected Len() == 3, got %d", d.Len())
	}
}

func TestDequeDropsOnArenaExhaustion(t *testing.T) {
	d := NewDeque[int]()
	for i := 0; i < constants.SharedDequeCapacity+5; i++ {
		d.Add(i)
	}
	if got := d.Len(); got != constants.SharedDequeCapacity {
		t.Fatalf("expected Len() to saturate at %d, got %d", constants.SharedDequeCapacity, got)
	}
	got, ok := d.Pop()
	if !ok || got != 0 {
		t.Fatalf("expected first accepted element 0, got %d, %v", got, ok)
	}
}
