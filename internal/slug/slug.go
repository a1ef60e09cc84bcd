// Package slug turns arbitrary USM metadata strings (track titles,
// embedded filenames) into filesystem-safe names. Ported from
// original_source/src/tools.cpp's slugify_utf8/basename_utf8, which used
// ICU; here golang.org/x/text/unicode/norm supplies the NFKC/NFKD
// normalisation ICU provided.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slug normalises s (NFKC if allowUnicode, NFKD otherwise — NFKD exposes
// combining marks so the ASCII-only pass below can drop them and keep the
// base letter), lowercases it, keeps only word characters, whitespace,
// and ". , + -", collapses whitespace/hyphen runs into a single hyphen,
// and trims leading/trailing "-"/"_".
func Slug(s string, allowUnicode bool) string {
	var normalized string
	if allowUnicode {
		normalized = norm.NFKC.String(s)
	} else {
		normalized = norm.NFKD.String(s)
	}
	normalized = strings.ToLower(normalized)

	var filtered []rune
	for _, c := range normalized {
		keep := false
		switch c {
		case '_', '.', ',', '+', '-':
			keep = true
		default:
			if unicode.IsSpace(c) || unicode.IsLetter(c) || unicode.IsDigit(c) {
				keep = true
			}
		}
		if !allowUnicode && c > 0x7F {
			keep = false
		}
		if keep {
			filtered = append(filtered, c)
		}
	}

	var collapsed []rune
	inSep := false
	for _, c := range filtered {
		sep := unicode.IsSpace(c) || c == '-'
		if sep {
			if !inSep {
				collapsed = append(collapsed, '-')
				inSep = true
			}
			continue
		}
		inSep = false
		collapsed = append(collapsed, c)
	}

	isStrip := func(c rune) bool { return c == '-' || c == '_' }

	start := 0
	end := len(collapsed)
	for start < end && isStrip(collapsed[start]) {
		start++
	}
	for end > start && isStrip(collapsed[end-1]) {
		end--
	}

	return string(collapsed[start:end])
}

// Basename returns the final path component of a slash- or
// backslash-delimited path-like string, matching basename_utf8's
// both-separator handling.
func Basename(pathLike string) string {
	p1 := strings.LastIndexByte(pathLike, '/')
	p2 := strings.LastIndexByte(pathLike, '\\')
	p := p1
	if p2 > p {
		p = p2
	}
	if p < 0 {
		return pathLike
	}
	return pathLike[p+1:]
}
