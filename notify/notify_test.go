package notify

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{W: &buf}
	if err := w.Notify("copied to clipboard"); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "NOTIFY copied to clipboard\n" {
		t.Errorf("got %q", got)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Notify("one")
	r.Err = errors.New("dbus down")
	if err := r.Notify("two"); err == nil {
		t.Fatal("expected configured error")
	}
	if r.Count() != 2 {
		t.Fatalf("count = %d", r.Count())
	}
	if got := <-r.Notified; got != "one" {
		t.Errorf("first signal = %q", got)
	}
	msgs := r.Messages()
	msgs[0] = "mutated"
	if r.Messages()[0] != "one" {
		t.Error("Messages shares backing array")
	}
}
