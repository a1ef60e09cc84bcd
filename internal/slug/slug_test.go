package slug

import "testing"

func TestSlugBasic(t *testing.T) {
	got := Slug("Movie Title: Part Two!", true)
	want := "movie-title-part-two"
	if got != want {
		t.Fatalf("Slug() = %q, want %q", got, want)
	}
}

func TestSlugIdempotent(t *testing.T) {
	for _, s := range []string{"Movie Title: Part Two!", "a__b--c", "日本語タイトル", "Trailing---"} {
		once := Slug(s, true)
		twice := Slug(once, true)
		if once != twice {
			t.Fatalf("Slug not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}

func TestSlugAsciiModeDropsNonAscii(t *testing.T) {
	got := Slug("café", false)
	if got != "cafe" {
		// NFKD decomposes e-acute into e + combining accent, which is then
		// dropped by the ASCII-only filter, leaving the base letter.
		t.Fatalf("Slug(ascii) = %q", got)
	}
}

func TestSlugStripsLeadingTrailingSeparators(t *testing.T) {
	got := Slug("--hello--", true)
	if got != "hello" {
		t.Fatalf("Slug() = %q, want %q", got, "hello")
	}
}

func TestBasenameBothSeparators(t *testing.T) {
	if got := Basename("a/b/c.usm"); got != "c.usm" {
		t.Fatalf("Basename(/) = %q", got)
	}
	if got := Basename(`a\b\c.usm`); got != "c.usm" {
		t.Fatalf(`Basename(\) = %q`, got)
	}
	if got := Basename(`a/b\c.usm`); got != "c.usm" {
		t.Fatalf("Basename(mixed) = %q", got)
	}
	if got := Basename("plain.usm"); got != "plain.usm" {
		t.Fatalf("Basename(plain) = %q", got)
	}
}
