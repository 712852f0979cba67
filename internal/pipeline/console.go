package pipeline

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/verbalis/verbalis/internal/session"
)

// interimPrefix marks the transient recognition line on the terminal.
const interimPrefix = "… "

// ConsoleObserver renders live session output on a terminal. Interim text is
// drawn on a single line that is overwritten in place as the recognizer
// revises its guess; committed segments are printed as permanent lines and
// the interim line is cleared first so the two never interleave.
type ConsoleObserver struct {
	mu      sync.Mutex
	w       io.Writer
	lastLen int // display width of the current interim line
}

var _ session.Observer = (*ConsoleObserver)(nil)

// NewConsoleObserver creates an observer writing to w (usually os.Stdout).
func NewConsoleObserver(w io.Writer) *ConsoleObserver {
	return &ConsoleObserver{w: w}
}

// OnInterim overwrites the transient line with the latest interim guess.
func (c *ConsoleObserver) OnInterim(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := interimPrefix + text
	pad := c.lastLen - utf8.RuneCountInString(line)
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(c.w, "\r%s%s", line, strings.Repeat(" ", pad))
	c.lastLen = utf8.RuneCountInString(line)
}

// OnSegment clears the interim line and prints the committed segment.
func (c *ConsoleObserver) OnSegment(seg session.Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastLen > 0 {
		fmt.Fprintf(c.w, "\r%s\r", strings.Repeat(" ", c.lastLen))
		c.lastLen = 0
	}
	fmt.Fprintf(c.w, "[%d] %s\n", seg.Sequence, seg.Original)
	if seg.Translated != "" {
		fmt.Fprintf(c.w, "    → %s\n", seg.Translated)
	}
}
