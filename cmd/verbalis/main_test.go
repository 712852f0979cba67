package main

import (
	"strings"
	"testing"
	"time"

	"github.com/verbalis/verbalis/internal/session"
)

func TestRun_UnknownCommand(t *testing.T) {
	if got := run([]string{"bogus"}); got != 2 {
		t.Errorf("exit code: want 2, got %d", got)
	}
}

func TestRun_NoArguments(t *testing.T) {
	if got := run(nil); got != 2 {
		t.Errorf("exit code: want 2, got %d", got)
	}
}

func TestSearch_RequiresQuery(t *testing.T) {
	if got := run([]string{"search"}); got != 2 {
		t.Errorf("exit code: want 2, got %d", got)
	}
}

func TestSegments_RequiresSessionID(t *testing.T) {
	if got := run([]string{"segments"}); got != 2 {
		t.Errorf("exit code: want 2, got %d", got)
	}
}

func TestPrintSegments(t *testing.T) {
	committed := time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)
	segs := []session.Segment{
		{Sequence: 1, CommittedAt: committed, Original: "bom dia a todos", Translated: "good morning everyone"},
		{Sequence: 2, CommittedAt: committed.Add(5 * time.Second), Original: "vamos começar"},
	}

	var sb strings.Builder
	printSegments(&sb, segs)
	got := sb.String()

	for _, want := range []string{
		"[1] 2026-08-30 10:15:00  bom dia a todos",
		"    -> good morning everyone",
		"[2] 2026-08-30 10:15:05  vamos começar",
		"2 segment(s)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	// A segment without a translation gets no arrow line.
	if strings.Count(got, "->") != 1 {
		t.Errorf("want exactly one translation line:\n%s", got)
	}
}
