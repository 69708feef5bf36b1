package persona

import "testing"

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("1.2.3")
	if err != nil {
		t.Fatalf("ParseVersion: %v", err)
	}
	if v.Major != 1 || v.Minor != 2 || v.Patch != 3 {
		t.Fatalf("unexpected version: %+v", v)
	}

	for _, bad := range []string{"", "1", "1.2", "1.2.3.4", "a.b.c", "1.-2.3", "01.2.3", "1..3"} {
		if _, err := ParseVersion(bad); err == nil {
			t.Fatalf("ParseVersion(%q): expected error", bad)
		}
	}
}

func TestBumpMinor(t *testing.T) {
	v := Version{Major: 1, Minor: 4, Patch: 9}
	next := v.BumpMinor()
	if next.String() != "1.5.0" {
		t.Fatalf("BumpMinor = %s, want 1.5.0", next)
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.1.0", "1.0.9", 1},
		{"2.0.0", "1.9.9", 1},
	}
	for _, tc := range cases {
		a, _ := ParseVersion(tc.a)
		b, _ := ParseVersion(tc.b)
		if got := a.Compare(b); got != tc.want {
			t.Fatalf("Compare(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
