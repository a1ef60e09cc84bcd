package main

import (
	"fmt"
	"os"

	"github.com/usmtool/usmtool/internal/catalog"
)

func runCatalog(args []string) int {
	if len(args) < 2 {
		usage()
		return 2
	}
	dbPath, sub := args[0], args[1]

	cat, err := catalog.Open(dbPath)
	if err != nil {
		return fatalf("catalog: %v", err)
	}
	defer cat.Close()

	switch sub {
	case "list":
		files, err := cat.ListFiles()
		if err != nil {
			return fatalf("catalog: %v", err)
		}
		for _, f := range files {
			fmt.Fprintln(os.Stdout, f)
		}
		return 0

	case "lookup":
		if len(args) < 3 {
			usage()
			return 2
		}
		records, err := cat.Lookup(args[2])
		if err != nil {
			return fatalf("catalog: %v", err)
		}
		for _, r := range records {
			fmt.Fprintf(os.Stdout, "%s\t%s\tchannel=%d\tspans=%d\tbytes=%d\t%s\n",
				r.Kind, r.FilePath, r.Channel, r.SpanCount, r.TotalBytes, r.CridFilename)
		}
		return 0

	default:
		usage()
		return 2
	}
}
