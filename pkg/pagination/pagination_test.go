package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 50: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("LimitWithBuffer(10) = %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 9, 1, 10, 30, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("cursor mismatch %+v vs %+v", out, in)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("blank cursor should be nil, got %+v %v", c, err)
	}
	for _, raw := range []string{"%%%", encodeRaw("no-separator"), encodeRaw("bad-time|" + uuid.NewString()), encodeRaw("2026-01-01T00:00:00Z|nope")} {
		if _, err := ParseCursor(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	type row struct {
		id uuid.UUID
		at time.Time
	}
	rows := []row{}
	for i := 0; i < 4; i++ {
		rows = append(rows, row{id: uuid.New(), at: base.Add(-time.Duration(i) * time.Minute)})
	}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := Trim(rows, 3, cursorOf)
	if len(page.Items) != 3 || page.NextCursor == "" {
		t.Fatalf("expected 3 items with a cursor, got %d %q", len(page.Items), page.NextCursor)
	}
	next, err := ParseCursor(page.NextCursor)
	if err != nil || next.ID != rows[2].id {
		t.Fatalf("cursor should point at last kept row: %+v %v", next, err)
	}

	last := Trim(rows[:2], 3, cursorOf)
	if len(last.Items) != 2 || last.NextCursor != "" {
		t.Fatalf("final page should have no cursor, got %+v", last)
	}
}

func encodeRaw(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
