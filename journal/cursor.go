package journal

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ilyalabun/btm/internal/format"
)

// cursor reads records from one fragment file. It snapshots the region
// between the file header and the write cursor at construction time, so a
// scan observes a consistent prefix of the log even while writes continue.
type cursor struct {
	data []byte
	pos  int64
	end  int64

	skipCRCCheck bool
}

// newCursor opens the fragment read-only and positions after the header.
func newCursor(filename string, skipCRCCheck bool) (*cursor, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open log fragment for reading")
	}
	defer f.Close()

	headerBytes := make([]byte, format.HeaderLength)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, format.HeaderLength), headerBytes); err != nil {
		return nil, errors.Wrapf(err, "cannot read log fragment header of %s", filename)
	}
	header, err := format.ParseFileHeader(headerBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse log fragment header of %s", filename)
	}

	end := header.Position
	if end < format.HeaderLength {
		end = format.HeaderLength
	}

	data := make([]byte, end)
	if _, err := f.ReadAt(data, 0); err != nil {
		return nil, errors.Wrapf(err, "cannot read log fragment %s", filename)
	}

	return &cursor{
		data:         data,
		pos:          format.HeaderLength,
		end:          end,
		skipCRCCheck: skipCRCCheck,
	}, nil
}

// ReadFragment opens a single fragment file read-only and returns an
// iterator over its records, without going through a journal. Intended for
// offline inspection tooling: the fragment is not created, locked or
// marked unclean.
func ReadFragment(filename string, includeInvalid bool) (RecordIterator, error) {
	return newCursor(filename, includeInvalid)
}

// Next decodes the next record. It returns io.EOF at the end of the log.
// On a *format.CorruptedRecordError the cursor has been advanced past the
// corrupted record using its claimed length, so the caller may keep
// iterating. On an error wrapping format.ErrUnreadableLog the rest of the
// fragment is lost and subsequent calls return io.EOF.
func (c *cursor) Next() (*Record, error) {
	if c.pos >= c.end {
		return nil, io.EOF
	}

	rec, next, err := format.DecodeRecord(c.data, c.pos, c.end, c.skipCRCCheck)
	if err != nil {
		if errors.Is(err, format.ErrUnreadableLog) {
			c.pos = c.end
			return nil, err
		}
		c.pos = next
		return nil, err
	}

	c.pos = next
	return rec, nil
}
