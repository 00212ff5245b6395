package discord

import "testing"

func TestParseCommand(t *testing.T) {
	cases := map[string]struct {
		prefix, content string
		cmd, arg        string
		ok              bool
	}{
		"register with arg":  {"!", "!register builderman", "register", "builderman", true},
		"check no arg":       {"!", "!check", "check", "", true},
		"unlink":             {"!", "!unlink", "unlink", "", true},
		"multi-word arg":     {"!", "!register name with spaces", "register", "name with spaces", true},
		"upper-cased":        {"!", "!REGISTER builderman", "register", "builderman", true},
		"leading whitespace": {"!", "   !check  ", "check", "", true},
		"not a command":      {"!", "hello there", "", "", false},
		"bare prefix":        {"!", "!", "", "", false},
		"prefix whitespace":  {"!", "!   ", "", "", false},
		"empty content":      {"!", "", "", "", false},
		"different prefix":   {"?", "!check", "", "", false},
		"empty prefix":       {"", "check", "", "", false},
	}
	for name, tc := range cases {
		cmd, arg, ok := ParseCommand(tc.prefix, tc.content)
		if cmd != tc.cmd || arg != tc.arg || ok != tc.ok {
			t.Errorf("%s: ParseCommand(%q, %q) = (%q, %q, %v); want (%q, %q, %v)",
				name, tc.prefix, tc.content, cmd, arg, ok, tc.cmd, tc.arg, tc.ok)
		}
	}
}
