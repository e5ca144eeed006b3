package archport

import "testing"

func TestManualTickDelivery(t *testing.T) {
	p := New(0)
	p.Tick()
	select {
	case <-p.Ticks():
	default:
		t.Fatal("expected a pending tick after Tick()")
	}
}

func TestTickCoalesces(t *testing.T) {
	p := New(0)
	p.Tick()
	p.Tick()
	p.Tick()

	count := 0
	for {
		select {
		case <-p.Ticks():
			count++
		default:
			if count != 1 {
				t.Fatalf("expected exactly one coalesced tick, got %d", count)
			}
			return
		}
	}
}

func TestMaskCriticalRoundTrip(t *testing.T) {
	p := New(0)
	if p.Masked() {
		t.Fatal("expected unmasked by default")
	}
	p.MaskCritical()
	if !p.Masked() {
		t.Fatal("expected masked after MaskCritical")
	}
	p.UnmaskCritical()
	if p.Masked() {
		t.Fatal("expected unmasked after UnmaskCritical")
	}
}

func TestSVCSerializes(t *testing.T) {
	p := New(0)
	order := make([]int, 0, 2)
	done := make(chan struct{})
	go func() {
		p.SVC(func() { order = append(order, 1) })
		done <- struct{}{}
	}()
	p.SVC(func() { order = append(order, 2) })
	<-done
	if len(order) != 2 {
		t.Fatalf("expected both SVC calls to run, got %v", order)
	}
}
