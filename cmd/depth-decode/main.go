// Command depth-decode summarises CBOR wire messages stored one per file.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v2"

	"depthview-go/internal/ingest"
	"depthview-go/internal/processing"
	"depthview-go/internal/types"
)

func main() {
	app := &cli.App{
		Name:      "depth-decode",
		Usage:     "summarise CBOR depth messages",
		ArgsUsage: "<file or directory>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 5, Usage: "max number of image messages to describe"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected one path", 2)
			}
			return summarise(c.Args().First(), c.Int("limit"))
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func summarise(path string, limit int) error {
	files, err := listFiles(path)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	counts := map[string]int{}
	var failures int
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", file, err)
			failures++
			continue
		}
		msg, err := ingest.DecodeMessage(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode %s: %v\n", file, err)
			failures++
			continue
		}
		counts[msg.Type]++

		switch msg.Type {
		case ingest.MessageStart:
			fmt.Printf("start: %s series=%s %dx%d bps=%d\n", file, msg.SeriesID,
				msg.Geometry.Width, msg.Geometry.Height, msg.Geometry.BytesPerSample)
		case ingest.MessageStatus:
			fmt.Printf("status: %s available=%v\n", file, msg.Available)
		case ingest.MessageImage:
			if counts[msg.Type] > limit {
				continue
			}
			img := msg.Image
			fmt.Printf("image: %s\n", file)
			fmt.Printf("  image_id: %d series_id: %s\n", img.ImageID, msg.SeriesID)
			fmt.Printf("  dims: %dx%d bps=%d bytes=%d\n", img.Width, img.Height, img.BytesPerSample, len(img.Data))
			fmt.Printf("  reliable: (%d, %d) max_depth: %d\n", img.Meta.MinReliable, img.Meta.MaxReliable, img.Meta.MaxDepth)
			describeBands(img)
		}
	}

	fmt.Printf("summary: start=%d image=%d status=%d end=%d failures=%d\n",
		counts[ingest.MessageStart], counts[ingest.MessageImage],
		counts[ingest.MessageStatus], counts[ingest.MessageEnd], failures)
	return nil
}

// describeBands prints how the image would be coloured with its own
// reliability window.
func describeBands(img ingest.Image) {
	g := img.Geometry()
	if err := g.Validate(); err != nil {
		fmt.Printf("  bands: %v\n", err)
		return
	}
	index := make([]byte, g.Pixels())
	processing.MapDepth(img.Data, types.PolicyReliable.Window(img.Meta), g, index)
	stats := processing.ComputeBandStats(index)
	fmt.Printf("  bands: mode=%d mean=%.2f std=%.2f counts=%v\n", stats.Mode, stats.Mean, stats.StdDev, stats.Counts)
}

func listFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".cbor" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
