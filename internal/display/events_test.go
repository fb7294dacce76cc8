package display

import (
	"testing"

	"github.com/bryanchriswhite/ScreenGrabber/internal/overlay"
)

func TestDispatcherCoalescesMotion(t *testing.T) {
	var queue []func()
	var got []overlay.Event
	d := newDispatcher(
		func(fn func()) { queue = append(queue, fn) },
		func(ev overlay.Event) { got = append(got, ev) },
	)

	motion := func(x int) overlay.Event { return overlay.Event{Kind: overlay.EventMotion, X: x, Y: x} }

	// the loop is busy repainting while these arrive
	d.dispatch(motion(1))
	d.dispatch(motion(2))
	d.dispatch(motion(3))
	d.dispatch(overlay.Event{Kind: overlay.EventButtonDown, Button: 1, X: 3, Y: 3})
	d.dispatch(motion(4))
	d.dispatch(motion(5))

	if len(queue) != 3 {
		t.Fatalf("queued %d posts, want 3", len(queue))
	}
	for _, fn := range queue {
		fn()
	}

	want := []overlay.Event{motion(3), {Kind: overlay.EventButtonDown, Button: 1, X: 3, Y: 3}, motion(5)}
	if len(got) != len(want) {
		t.Fatalf("delivered %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// once drained, the next motion posts again
	d.dispatch(motion(6))
	if len(queue) != 4 {
		t.Fatalf("motion after drain not posted")
	}
}
