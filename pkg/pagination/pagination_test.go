package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 30, 0, 123, time.UTC), ID: uuid.New()}
	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("expected nil cursor for empty input, got %+v %v", c, err)
	}
	for _, raw := range []string{"%%%", "bm9waXBl", encodeRaw("not-a-time|" + uuid.NewString())} {
		if _, err := ParseCursor(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func encodeRaw(payload string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 500: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatalf("expected buffer of one")
	}
}

func TestPage(t *testing.T) {
	type row struct {
		at time.Time
		id uuid.UUID
	}
	base := time.Now().UTC()
	rows := []row{
		{at: base, id: uuid.New()},
		{at: base.Add(-time.Minute), id: uuid.New()},
		{at: base.Add(-2 * time.Minute), id: uuid.New()},
	}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Page(rows, 2, cursorOf)
	if len(page) != 2 || next == nil {
		t.Fatalf("expected two rows and a cursor, got %d %v", len(page), next)
	}
	if next.ID != rows[1].id {
		t.Fatalf("cursor must point at the last returned row")
	}

	page, next = Page(rows[:2], 2, cursorOf)
	if len(page) != 2 || next != nil {
		t.Fatalf("expected final page without cursor")
	}
}
