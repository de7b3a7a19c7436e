package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"frame-relay-go/internal/output"
)

type recordSummary struct {
	Index     int     `json:"index"`
	Written   string  `json:"written"`
	Session   string  `json:"session"`
	Seq       uint64  `json:"seq"`
	Timestamp float64 `json:"timestamp"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Bytes     int     `json:"bytes"`
}

func main() {
	var (
		path    = flag.String("path", "", "Path to frame recording .bin file")
		limit   = flag.Int("limit", 1, "Number of records to dump (0 for all)")
		extract = flag.String("extract", "", "Write each frame as <seq>.jpg into this directory")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open recording: %v", err)
	}
	defer f.Close()

	reader, err := output.NewFrameLogReader(f)
	if err != nil {
		log.Fatalf("read recording: %v", err)
	}
	if *extract != "" {
		if err := os.MkdirAll(*extract, 0o755); err != nil {
			log.Fatalf("create extract dir: %v", err)
		}
	}

	for count := 0; *limit <= 0 || count < *limit; count++ {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Fatalf("record %d: %v", count, err)
		}

		summary := recordSummary{
			Index:     count,
			Written:   rec.Written.Format(time.RFC3339Nano),
			Session:   rec.Session,
			Seq:       rec.Frame.Seq,
			Timestamp: rec.Frame.Timestamp,
			Width:     rec.Frame.Width,
			Height:    rec.Frame.Height,
			Bytes:     len(rec.Frame.Data),
		}
		pretty, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			log.Printf("record %d: JSON encode error: %v", count, err)
			continue
		}
		fmt.Println(string(pretty))

		if *extract != "" {
			name := filepath.Join(*extract, fmt.Sprintf("%08d.jpg", rec.Frame.Seq))
			if err := os.WriteFile(name, rec.Frame.Data, 0o644); err != nil {
				log.Fatalf("write %s: %v", name, err)
			}
		}
	}
}
