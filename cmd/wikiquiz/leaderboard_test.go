package main

import (
	"bytes"
	"strings"
	"testing"

	"gorm.io/datatypes"

	"wikiquiz/internal/leaderboard"
)

func TestPrintBoard(t *testing.T) {
	var buf bytes.Buffer
	printBoard(&buf, nil)
	if !strings.Contains(buf.String(), "No games") {
		t.Errorf("expected empty message, got %q", buf.String())
	}

	buf.Reset()
	printBoard(&buf, []leaderboard.GameRecord{
		{Username: "ada", Streak: 3, Path: datatypes.JSON(`["Mars","Phobos (moon)","Deimos (moon)"]`)},
		{Username: leaderboard.AnonymousName, Streak: 1},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "ada") || !strings.Contains(lines[0], "Mars -> Phobos (moon) -> Deimos (moon)") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], " 2. Anonymous") {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}
