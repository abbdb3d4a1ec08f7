// Command depth-rawlog-dump prints the records of a raw message log as JSON.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/urfave/cli/v2"

	"depthview-go/internal/output"
)

func main() {
	app := &cli.App{
		Name:      "depth-rawlog-dump",
		Usage:     "dump raw log records as JSON",
		ArgsUsage: "<rawlog .bin>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 1, Usage: "number of records to dump, 0 for all"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected one rawlog path", 2)
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return fmt.Errorf("open rawlog: %w", err)
			}
			defer f.Close()
			return dump(f, os.Stdout, c.Int("limit"))
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func dump(r io.Reader, w io.Writer, limit int) error {
	reader, err := output.NewRawLogReader(r)
	if err != nil {
		return err
	}
	for count := 0; limit <= 0 || count < limit; count++ {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", count, err)
		}

		var decoded any
		if err := cbor.Unmarshal(rec.Payload, &decoded); err != nil {
			fmt.Fprintf(w, "# record %d: CBOR decode error: %v\n", count, err)
			continue
		}
		pretty, err := json.MarshalIndent(output.NormalizeJSONValue(decoded), "", "  ")
		if err != nil {
			fmt.Fprintf(w, "# record %d: JSON encode error: %v\n", count, err)
			continue
		}
		fmt.Fprintf(w, "# record %d timestamp=%s size=%d\n", count, rec.Time.Format(time.RFC3339Nano), len(rec.Payload))
		fmt.Fprintln(w, string(pretty))
	}
	return nil
}
