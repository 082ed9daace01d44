// Package testutil provides journal corruption helpers shared by tests:
// byte-level corruption of fragment files and high-level rewriting of a
// journal's record history.
package testutil

import (
	"os"

	"github.com/pkg/errors"

	"github.com/ilyalabun/btm/journal"
)

// CorruptFile overwrites bytes of a fragment file in place. The journal
// owning the file must be closed.
func CorruptFile(filename string, offset int64, data []byte) error {
	f, err := os.OpenFile(filename, os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s for corruption", filename)
	}
	defer f.Close()
	if _, err := f.WriteAt(data, offset); err != nil {
		return errors.Wrapf(err, "cannot corrupt %s", filename)
	}
	return nil
}

// RewriteJournal reads the closed journal's records, deletes its fragment
// files, and lets rewrite build a replacement history into a fresh journal
// over the same files. Used to fabricate divergent or inconsistent
// histories that the normal append path would never produce.
func RewriteJournal(cfg journal.DiskConfig, rewrite func(records *journal.Records, j journal.Journal) error) error {
	reader := journal.NewDiskJournal(cfg)
	if err := reader.Open(); err != nil {
		return err
	}
	records, err := reader.CollectAllRecords()
	if err != nil {
		reader.Shutdown()
		return err
	}
	reader.Shutdown()

	if err := os.Remove(cfg.LogPart1Filename); err != nil {
		return err
	}
	if err := os.Remove(cfg.LogPart2Filename); err != nil {
		return err
	}

	writer := journal.NewDiskJournal(cfg)
	if err := writer.Open(); err != nil {
		return err
	}
	defer writer.Shutdown()

	if err := rewrite(records, writer); err != nil {
		return err
	}
	return writer.Force()
}

// DeleteJournalFiles removes both fragment files, ignoring files already
// absent.
func DeleteJournalFiles(cfg journal.DiskConfig) error {
	for _, f := range []string{cfg.LogPart1Filename, cfg.LogPart2Filename} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
