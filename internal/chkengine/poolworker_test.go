package chkengine

import "testing"

func TestLabelDefaultTable(t *testing.T) {
	cases := []struct {
		ps, target string
		want       string
	}{
		{"", "", "IGNORE"},
		{"pool-a", "", "TRUST_PS"},
		{"", "pool-a", "TRUST_TARGET"},
		{"pool-a", "pool-b", "INTERACT"},
	}
	for _, c := range cases {
		if got := labelDefault(c.ps, c.target).String(); got != c.want {
			t.Fatalf("labelDefault(%q, %q) = %s, want %s", c.ps, c.target, got, c.want)
		}
	}
}
