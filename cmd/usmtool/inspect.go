package main

import (
	"flag"
	"os"
	"strings"

	"github.com/usmtool/usmtool/internal/manifest"
	"github.com/usmtool/usmtool/internal/page"
	"github.com/usmtool/usmtool/internal/usm"
)

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	out := fs.String("out", "", "manifest output path (.json or .json.br); defaults to stdout")
	keyStr := fs.String("key", "", "cipher seed override, decimal or 0x-hex")
	encoding := fs.String("encoding", "", "page string encoding (defaults to auto)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage()
		return 2
	}
	input := fs.Arg(0)

	key, err := parseKey(*keyStr)
	if err != nil {
		return fatalf("inspect: %v", err)
	}

	u, err := usm.Open(input, key, *encoding)
	if err != nil {
		return fatalf("inspect: %v", err)
	}

	pages := []*page.Page{u.UsmCridPage()}
	for _, t := range u.Videos() {
		pages = append(pages, t.Crid)
	}
	for _, t := range u.Audios() {
		pages = append(pages, t.Crid)
	}
	for _, t := range u.Alphas() {
		pages = append(pages, t.Crid)
	}

	var w *os.File
	brotliCompress := strings.HasSuffix(*out, ".br")
	if *out == "" {
		w = os.Stdout
	} else {
		f, err := os.Create(*out)
		if err != nil {
			return fatalf("inspect: create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	if err := manifest.DumpPages(w, pages, brotliCompress); err != nil {
		return fatalf("inspect: %v", err)
	}
	return 0
}
