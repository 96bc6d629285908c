package cmd

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want command
	}{
		{"", command{op: 'n'}},
		{"n", command{op: 'n'}},
		{" p ", command{op: 'p'}},
		{"j", command{op: 'j'}},
		{"k", command{op: 'k'}},
		{"g 12", command{op: 'g', arg: 12}},
		{"q", command{op: 'q'}},
	}
	for _, c := range cases {
		got, err := parseCommand(c.line)
		if err != nil {
			t.Fatalf("parseCommand(%q): %v", c.line, err)
		}
		if got != c.want {
			t.Fatalf("parseCommand(%q) = %+v, want %+v", c.line, got, c.want)
		}
	}

	for _, bad := range []string{"x", "next", "g", "g x", "g 1 2", "n 3"} {
		if _, err := parseCommand(bad); err == nil {
			t.Fatalf("parseCommand(%q) should fail", bad)
		}
	}
}
