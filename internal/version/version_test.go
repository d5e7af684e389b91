package version

import "testing"

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.3", "1.2.4", -1},
		{"1.3.0", "1.2.9", 1},
		{"1.2", "1.2.0", 0},
		{"1.2.0.1", "1.2", 1},
		{"2.0", "1.9.9", 1},
	}
	for _, c := range cases {
		a, err := Parse(c.a)
		if err != nil {
			t.Fatalf("parse %q: %v", c.a, err)
		}
		b, err := Parse(c.b)
		if err != nil {
			t.Fatalf("parse %q: %v", c.b, err)
		}
		if got := a.Compare(b); got != c.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestParseRejectsNonNumeric(t *testing.T) {
	if _, err := Parse("1.4-rc1"); err == nil {
		t.Fatal("expected error for pre-release tag")
	}
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestSort(t *testing.T) {
	vs := []Version{MustParse("1.10.0"), MustParse("1.2.0"), MustParse("1.9.0")}
	Sort(vs)
	want := []string{"1.2.0", "1.9.0", "1.10.0"}
	for i, v := range vs {
		if v.String() != want[i] {
			t.Errorf("Sort()[%d] = %s, want %s", i, v.String(), want[i])
		}
	}
}

func TestSortVersionsFirst(t *testing.T) {
	names := []string{"1.0", "1.1", "1.2"}
	got := SortVersions(names, "1.2", First())
	want := []string{"1.2", "1.0", "1.1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSortVersionsAfter(t *testing.T) {
	names := []string{"1.0", "1.1", "1.2"}
	got := SortVersions(names, "1.0", After("1.1"))
	want := []string{"1.1", "1.0", "1.2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSortVersionsAfterMissingTarget(t *testing.T) {
	names := []string{"1.0", "1.1"}
	got := SortVersions(names, "1.0", After("9.9"))
	want := []string{"1.1", "1.0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
