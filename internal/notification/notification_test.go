package notification

import (
	"errors"
	"testing"
)

type fakeBackend struct {
	replaces []uint32
	bodies   []string
	nextID   uint32
	err      error
}

var _ Backend = (*fakeBackend)(nil)

func (b *fakeBackend) Notify(replaces uint32, _, body string) (uint32, error) {
	if b.err != nil {
		return 0, b.err
	}
	b.replaces = append(b.replaces, replaces)
	b.bodies = append(b.bodies, body)
	if replaces != 0 {
		return replaces, nil
	}
	b.nextID++
	return b.nextID, nil
}

func TestNotifierReusesSlot(t *testing.T) {
	b := &fakeBackend{nextID: 41}
	n := New(b)

	for _, body := range []string{"file:///a.png", "https://imgur.com/x", "file:///b.png"} {
		if err := n.Show(AppName, body); err != nil {
			t.Fatalf("Show: %v", err)
		}
	}

	want := []uint32{0, 42, 42}
	for i, id := range want {
		if b.replaces[i] != id {
			t.Fatalf("call %d replaced %d, want %d", i, b.replaces[i], id)
		}
	}
	if n.Slot() != 42 {
		t.Fatalf("slot = %d", n.Slot())
	}
}

func TestNotifierError(t *testing.T) {
	boom := errors.New("no daemon")
	n := New(&fakeBackend{err: boom})
	if err := n.Show(AppName, "x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if n.Slot() != 0 {
		t.Fatal("slot set after failure")
	}
}

type countingBackend struct{ calls int }

func (b *countingBackend) Notify(uint32, string, string) (uint32, error) {
	b.calls++
	return 0, nil
}

func TestNotifierZeroIDKeepsSlot(t *testing.T) {
	b := &countingBackend{}
	n := New(b)
	_ = n.Show(AppName, "a")
	_ = n.Show(AppName, "b")
	if b.calls != 2 || n.Slot() != 0 {
		t.Fatalf("calls=%d slot=%d", b.calls, n.Slot())
	}
}
