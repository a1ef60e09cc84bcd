// Command usmtool parses and demuxes USM container files: chunk-walk a
// file, match channels to their CRID metadata, and extract elementary
// streams, optionally deciphering them. See original_source/apps/usmtool.cpp
// for the reference CLI this contract matches.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

func usage() {
	fmt.Fprint(os.Stderr, `Usage:
  usmtool demux <input.usm> -o <outdir> [--key <num>] [--encoding <enc>]
          [--no-video] [--no-audio] [--no-alpha]
          [--catalog <db>] [--rate-limit-mbps <n>] [--metrics-addr <addr>]

  usmtool inspect <input.usm> [--out <manifest.json[.br]>] [--key <num>]

  usmtool catalog <db> list
  usmtool catalog <db> lookup <filename>

  usmtool mount <input.usm> <mountpoint> [--key <num>] (linux only)
`)
}

// fatalf prints an error to stderr (colored red when stderr is a
// terminal, matching the CLI tools in the pack that bother to check) and
// returns exit code 1, the I/O/parse-error contract from
// original_source/apps/usmtool.cpp.
func fatalf(format string, args ...any) int {
	prefix := "Error: "
	if isatty.IsTerminal(os.Stderr.Fd()) {
		prefix = "\x1b[31mError:\x1b[0m "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
	return 1
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 2
	}

	switch args[0] {
	case "demux":
		return runDemux(args[1:])
	case "inspect":
		return runInspect(args[1:])
	case "catalog":
		return runCatalog(args[1:])
	case "mount":
		return runMount(args[1:])
	default:
		usage()
		return 2
	}
}
