package textproc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestProcessor(keywords map[string]string) (*Processor, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	p := New(keywords)
	p.now = c.now
	return p, c
}

func TestTrailingPeriodStripped(t *testing.T) {
	p, _ := newTestProcessor(nil)
	assert.Equal(t, "Hello world", p.Process("hello world..."))
}

func TestKeywordReplacement(t *testing.T) {
	p, _ := newTestProcessor(map[string]string{
		"virgule":     ",",
		"point":       ".",
		"point final": "!",
		"à la ligne":  "\n",
	})

	assert.Equal(t, "Bonjour , ça va .", p.Process("bonjour VIRGULE ça va point"))
	assert.Equal(t, "fini !", p.Process("fini point final"), "longest keyword first")
}

func TestKeywordWordBoundary(t *testing.T) {
	p, _ := newTestProcessor(map[string]string{"point": "."})
	assert.Equal(t, "Appointment", p.Process("appointment"))
}

func TestReplacementIsLiteral(t *testing.T) {
	p, _ := newTestProcessor(map[string]string{"dollar": "$1"})
	assert.Equal(t, "Cost $1", p.Process("cost dollar"))
}

func TestCapitalization(t *testing.T) {
	p, c := newTestProcessor(nil)

	assert.Equal(t, "First", p.Process("first"))

	c.t = c.t.Add(10 * time.Second)
	assert.Equal(t, "second", p.Process("second"), "short gap keeps case")

	c.t = c.t.Add(Gap + time.Second)
	assert.Equal(t, "Third,", p.Process("third,"), "long gap capitalizes")

	c.t = c.t.Add(Gap + time.Second)
	assert.Equal(t, "after comma", p.Process("after comma"), "never after a trailing comma")

	p.Reset()
	assert.Equal(t, "Élan", p.Process("élan"))
}

func TestEmpty(t *testing.T) {
	p, _ := newTestProcessor(map[string]string{"point": "."})
	assert.Equal(t, "", p.Process(""))
	assert.Equal(t, "", p.Process("..."))
}
