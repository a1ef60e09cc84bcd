package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/usmtool/usmtool/internal/catalog"
	"github.com/usmtool/usmtool/internal/ratewriter"
	"github.com/usmtool/usmtool/internal/usm"
	"github.com/usmtool/usmtool/internal/usmmetrics"
	"github.com/usmtool/usmtool/internal/usmtype"
)

func kindLabel(kind usmtype.ChunkKind) string {
	switch kind {
	case usmtype.ChunkVideo:
		return "video"
	case usmtype.ChunkAudio:
		return "audio"
	case usmtype.ChunkAlpha:
		return "alpha"
	default:
		return "unknown"
	}
}

func runDemux(args []string) int {
	fs := flag.NewFlagSet("demux", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	outDir := fs.String("o", "", "output directory (required)")
	keyStr := fs.String("key", "", "cipher seed override, decimal or 0x-hex")
	encoding := fs.String("encoding", "", "page string encoding (defaults to auto)")
	noVideo := fs.Bool("no-video", false, "skip video tracks")
	noAudio := fs.Bool("no-audio", false, "skip audio tracks")
	noAlpha := fs.Bool("no-alpha", false, "skip alpha tracks")
	catalogPath := fs.String("catalog", "", "record demuxed tracks into this SQLite catalog")
	rateLimitMbps := fs.Float64("rate-limit-mbps", 0, "throttle each track's output to this many megabits/sec (0 disables)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while demuxing (e.g. :9090)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage()
		return 2
	}
	input := fs.Arg(0)
	if *outDir == "" {
		return fatalf("demux: -o <outdir> is required")
	}

	key, err := parseKey(*keyStr)
	if err != nil {
		return fatalf("demux: %v", err)
	}

	u, err := usm.Open(input, key, *encoding)
	if err != nil {
		return fatalf("demux: %v", err)
	}

	var recorder usmmetrics.Recorder = usmmetrics.NopRecorder{}
	if *metricsAddr != "" {
		prom := usmmetrics.NewPromRecorder()
		recorder = prom
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("usmtool: metrics server stopped: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("usmtool: serving metrics on %s", *metricsAddr)
	}

	opts := usm.DemuxOptions{
		SaveVideo: !*noVideo,
		SaveAudio: !*noAudio,
		SaveAlpha: !*noAlpha,
	}
	if *rateLimitMbps > 0 {
		opts.WrapWriter = func(w io.Writer) io.Writer {
			return ratewriter.New(w, *rateLimitMbps)
		}
	}
	opts.OnTrackWritten = func(kind usmtype.ChunkKind, t *usm.Track) {
		label := kindLabel(kind)
		recorder.ObserveTrackDemuxed(label)
		recorder.ObserveBytesWritten(label, t.TotalBytes())
	}

	if err := u.Demux(*outDir, opts); err != nil {
		recorder.ObserveDemuxError("demux")
		return fatalf("demux: %v", err)
	}

	if *catalogPath != "" {
		cat, err := catalog.Open(*catalogPath)
		if err != nil {
			return fatalf("demux: catalog: %v", err)
		}
		defer cat.Close()
		if err := cat.Record(u); err != nil {
			return fatalf("demux: catalog: %v", err)
		}
	}

	total := uint64(0)
	for _, t := range append(append(append([]*usm.Track{}, u.Videos()...), u.Audios()...), u.Alphas()...) {
		total += t.TotalBytes()
	}
	log.Printf("usmtool: demux complete input=%s out=%s bytes=%s", input, *outDir, humanize.Bytes(total))
	return 0
}

func parseKey(s string) (*uint64, error) {
	if s == "" {
		return nil, nil
	}
	var v uint64
	var err error
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid --key %q: %w", s, err)
	}
	return &v, nil
}
