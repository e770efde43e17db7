package topic

import "testing"

func TestMatchCanonicalCases(t *testing.T) {
	cases := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"user.created", "user.created", true},
		{"user.created", "user.updated", false},
		{"user.*", "user.created", true},
		{"user.*", "user.updated", true},
		{"user.*", "user.profile.updated", false},
		{"user.#", "user.created", true},
		{"user.#", "user.profile.updated", true},
		{"user.#", "order.created", false},
		{"*.user.#", "app.user.profile", true},
		{"*.user.#", "user.profile", false},
	}
	for _, c := range cases {
		p, err := Compile(c.pattern)
		if err != nil {
			t.Fatalf("compile %q: %v", c.pattern, err)
		}
		if got := p.Match(c.topic); got != c.want {
			t.Errorf("pattern %q topic %q: got %v want %v", c.pattern, c.topic, got, c.want)
		}
	}
}

func TestCompileInvalid(t *testing.T) {
	invalid := []string{"", "user..created", "user.#.created"}
	for _, p := range invalid {
		if _, err := Compile(p); err == nil {
			t.Errorf("expected error compiling %q", p)
		}
	}
}

func TestHashMatchesZeroTrailingSegments(t *testing.T) {
	p := MustCompile("user.#")
	if !p.Match("user") {
		t.Fatalf("'#' should match zero trailing segments")
	}
}
