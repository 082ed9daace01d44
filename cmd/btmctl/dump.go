package main

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ilyalabun/btm/internal/format"
	"github.com/ilyalabun/btm/journal"
	"github.com/ilyalabun/btm/status"
)

var includeInvalid bool

var dumpCmd = &cobra.Command{
	Use:   "dump <fragment>...",
	Short: "Dump the records of journal fragment files",
	Long: `Decodes and prints every record of the given fragment files in
file order. Corrupted records are reported and skipped. With
--include-invalid the CRC of each record is not checked, which recovers
the readable fields of records whose payload bytes were damaged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().BoolVar(&includeInvalid, "include-invalid", false, "Do not verify record CRCs")
	rootCmd.AddCommand(dumpCmd)
}

type dumpedRecord struct {
	Index          int      `json:"index"`
	Status         string   `json:"status"`
	Gtrid          string   `json:"gtrid"`
	Time           string   `json:"time"`
	SequenceNumber int32    `json:"sequenceNumber"`
	UniqueNames    []string `json:"uniqueNames"`
	Corrupted      bool     `json:"corrupted,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func runDump(cmd *cobra.Command, args []string) error {
	for _, filename := range args {
		if !jsonOut {
			fmt.Printf("%s:\n", filename)
		}
		records, err := dumpFragment(filename)
		if err != nil {
			return err
		}
		if jsonOut {
			if err := printJSON(records); err != nil {
				return err
			}
			continue
		}
		for _, rec := range records {
			if rec.Corrupted {
				fmt.Printf("  #%-4d CORRUPTED: %s\n", rec.Index, rec.Error)
				continue
			}
			fmt.Printf("  #%-4d %-13s gtrid=%s seq=%d time=%s names=%v\n",
				rec.Index, rec.Status, rec.Gtrid, rec.SequenceNumber, rec.Time, rec.UniqueNames)
		}
	}
	return nil
}

func dumpFragment(filename string) ([]dumpedRecord, error) {
	it, err := journal.ReadFragment(filename, includeInvalid)
	if err != nil {
		return nil, err
	}

	var out []dumpedRecord
	for index := 0; ; index++ {
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			if errors.Is(err, format.ErrUnreadableLog) {
				out = append(out, dumpedRecord{Index: index, Corrupted: true, Error: err.Error()})
				return out, nil
			}
			if errors.Is(err, journal.ErrCorruptedRecord) {
				out = append(out, dumpedRecord{Index: index, Corrupted: true, Error: err.Error()})
				continue
			}
			return nil, err
		}

		out = append(out, dumpedRecord{
			Index:          index,
			Status:         status.Name(rec.Status),
			Gtrid:          rec.Gtrid.String(),
			Time:           time.UnixMilli(rec.Time).UTC().Format(time.RFC3339),
			SequenceNumber: rec.SequenceNumber,
			UniqueNames:    rec.UniqueNames,
		})
	}
}
