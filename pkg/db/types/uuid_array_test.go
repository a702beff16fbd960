package dbtypes

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDArrayRoundTripPreservesOrder(t *testing.T) {
	first := uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	second := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	value, err := UUIDArray{first, second}.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	literal, ok := value.(string)
	if !ok {
		t.Fatalf("expected string literal, got %T", value)
	}
	if literal != "{"+first.String()+","+second.String()+"}" {
		t.Fatalf("unexpected literal %q", literal)
	}

	var scanned UUIDArray
	if err := scanned.Scan([]byte(literal)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(scanned) != 2 || scanned[0] != first || scanned[1] != second {
		t.Fatalf("unexpected scan result %v", scanned)
	}
	if !scanned.Contains(second) || scanned.Contains(uuid.New()) {
		t.Fatalf("contains mismatch for %v", scanned)
	}
}

func TestUUIDArrayScanEdgeCases(t *testing.T) {
	cases := []struct {
		name    string
		src     any
		wantLen int
		wantErr bool
	}{
		{name: "nil", src: nil},
		{name: "empty literal", src: "{}"},
		{name: "quoted", src: `{"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}`, wantLen: 1},
		{name: "garbage", src: "{nope}", wantErr: true},
		{name: "unsupported type", src: 42, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var a UUIDArray
			err := a.Scan(tc.src)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %v", tc.src)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(a) != tc.wantLen {
				t.Fatalf("expected %d ids, got %d", tc.wantLen, len(a))
			}
		})
	}
}
