package capability

import "testing"

func TestSpokenTextStripsThinkBlocks(t *testing.T) {
	raw := "<think>The user wants directions. Let me be brief.</think>Turn left at the light."
	if got := SpokenText(raw); got != "Turn left at the light." {
		t.Fatalf("unexpected spoken text %q", got)
	}
}

func TestSpokenTextAllThinkingMeansNothingToSay(t *testing.T) {
	if got := SpokenText("<think>still reasoning</think>"); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
	if got := SpokenText("  \n\t "); got != "" {
		t.Fatalf("expected empty output for whitespace, got %q", got)
	}
}

func TestSpokenTextScrubsMarkup(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bold and headers", "## Route\n**Take** the _second_ exit.", "Route Take the second exit."},
		{"inline code", "Run `brake check` now.", "Run now."},
		{"fenced code", "Here:\n```\nsudo reboot\n```\nDone.", "Here: Done."},
		{"markdown link", "See [the manual](https://example.com/manual) for details.", "See the manual for details."},
		{"bare url", "Details at https://example.com/info today.", "Details at today."},
		{"emoji", "All clear 👍 ahead.", "All clear ahead."},
		{"collapses whitespace", "One.\n\n\nTwo.", "One. Two."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SpokenText(tc.in); got != tc.want {
				t.Fatalf("SpokenText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSpokenTextPlainSentencePassesThrough(t *testing.T) {
	in := "Traffic is light, you should arrive in ten minutes."
	if got := SpokenText(in); got != in {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
