package main

import (
	"flag"
	"os"

	"github.com/usmtool/usmtool/internal/usm"
	"github.com/usmtool/usmtool/internal/usmfs"
)

func runMount(args []string) int {
	fs := flag.NewFlagSet("mount", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	keyStr := fs.String("key", "", "cipher seed override, decimal or 0x-hex")
	encoding := fs.String("encoding", "", "page string encoding (defaults to auto)")
	allowOther := fs.Bool("allow-other", false, "allow other users to access the mount")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		usage()
		return 2
	}
	input, mountPoint := fs.Arg(0), fs.Arg(1)

	key, err := parseKey(*keyStr)
	if err != nil {
		return fatalf("mount: %v", err)
	}

	u, err := usm.Open(input, key, *encoding)
	if err != nil {
		return fatalf("mount: %v", err)
	}

	if err := usmfs.MountWithAllowOther(mountPoint, u, *allowOther); err != nil {
		return fatalf("mount: %v", err)
	}
	return 0
}
