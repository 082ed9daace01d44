package journal

import (
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ilyalabun/btm/internal/buf"
	"github.com/ilyalabun/btm/internal/format"
)

// logAppender owns the write side of one fragment file: the in-memory copy
// of the file header and the rolling write cursor. Every append writes the
// record bytes and the cursor in the same system-call window, so one
// fdatasync makes both durable together and the cursor can never point past
// an unflushed record.
//
// The appender is not goroutine-safe; the disk journal serializes access
// under its write latch.
type logAppender struct {
	filename      string
	file          *os.File
	maxFileLength int64
	header        format.FileHeader
	position      atomic.Int64
	log           zerolog.Logger
}

// openAppender opens the fragment file, creating and pre-allocating it when
// absent. Freshly created fragments carry createTimestamp in their header;
// the caller passes the same value for both fragments so the active
// election stays deterministic. An existing fragment left in the unclean
// state is reported: the previous process did not close the journal and
// recovery is required.
func openAppender(filename string, maxFileLength, createTimestamp int64, log zerolog.Logger) (*logAppender, error) {
	a := &logAppender{
		filename:      filename,
		maxFileLength: maxFileLength,
		log:           log,
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		if err := a.create(createTimestamp); err != nil {
			return nil, err
		}
		return a, nil
	}

	f, err := os.OpenFile(filename, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open log fragment %s", filename)
	}

	headerBytes := make([]byte, format.HeaderLength)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "cannot read header of log fragment %s", filename)
	}
	header, err := format.ParseFileHeader(headerBytes)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "invalid header in log fragment %s", filename)
	}
	if header.State == format.UncleanLogState {
		log.Warn().Str("file", filename).
			Msg("log file is unclean, previous shutdown was not graceful")
	}
	if header.Position < format.HeaderLength || header.Position > maxFileLength {
		f.Close()
		return nil, errors.Errorf("log fragment %s has write position %d outside of [%d, %d]",
			filename, header.Position, format.HeaderLength, maxFileLength)
	}

	a.file = f
	a.header = header
	a.position.Store(header.Position)

	// mark unclean while the journal is running
	if err := a.writeState(format.UncleanLogState); err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

// create builds a fresh pre-allocated fragment whose header is marked
// unclean, like any fragment of a running journal.
func (a *logAppender) create(timestamp int64) error {
	f, err := os.OpenFile(a.filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrapf(err, "cannot create log fragment %s", a.filename)
	}
	if err := f.Truncate(a.maxFileLength); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot pre-allocate log fragment %s to %d bytes", a.filename, a.maxFileLength)
	}

	a.file = f
	a.header = format.FileHeader{
		FormatID:  format.FileFormatID,
		Timestamp: timestamp,
		State:     format.UncleanLogState,
		Position:  format.HeaderLength,
	}
	a.position.Store(format.HeaderLength)
	if err := a.writeHeader(); err != nil {
		f.Close()
		return err
	}
	a.log.Debug().Str("file", a.filename).Int64("size", a.maxFileLength).Msg("created log fragment")
	return nil
}

// writeRecord appends rec at the current position and advances the cursor.
// Returns false without writing when the record does not fit in the
// fragment anymore.
func (a *logAppender) writeRecord(rec *Record) (bool, error) {
	encoded := format.EncodeRecord(rec)
	pos := a.position.Load()
	if pos+int64(len(encoded)) > a.maxFileLength {
		return false, nil
	}

	if _, err := a.file.WriteAt(encoded, pos); err != nil {
		return false, errors.Wrapf(err, "cannot write log record to %s", a.filename)
	}

	newPos := pos + int64(len(encoded))
	if err := a.writePosition(newPos); err != nil {
		return false, err
	}
	return true, nil
}

// rewind resets the fragment for reuse as the new active fragment. The
// header timestamp decides which fragment is active at open time, so the
// caller passes a timestamp later than the vacated fragment's.
func (a *logAppender) rewind(timestamp int64) error {
	a.header = format.FileHeader{
		FormatID:  format.FileFormatID,
		Timestamp: timestamp,
		State:     format.UncleanLogState,
		Position:  format.HeaderLength,
	}
	a.position.Store(format.HeaderLength)
	return a.writeHeader()
}

// force flushes the written records and the cursor to stable storage.
func (a *logAppender) force() error {
	if err := fdatasync(a.file); err != nil {
		return errors.Wrapf(err, "cannot force log fragment %s", a.filename)
	}
	return nil
}

// close persists a clean header and releases the file handle.
func (a *logAppender) close() error {
	if a.file == nil {
		return nil
	}
	if err := a.writeState(format.CleanLogState); err != nil {
		return err
	}
	if err := a.force(); err != nil {
		return err
	}
	err := a.file.Close()
	a.file = nil
	return errors.Wrapf(err, "cannot close log fragment %s", a.filename)
}

func (a *logAppender) timestamp() int64 {
	return a.header.Timestamp
}

func (a *logAppender) writeHeader() error {
	a.header.Position = a.position.Load()
	if _, err := a.file.WriteAt(format.EncodeFileHeader(a.header), 0); err != nil {
		return errors.Wrapf(err, "cannot write header of log fragment %s", a.filename)
	}
	return nil
}

func (a *logAppender) writePosition(pos int64) error {
	var b [8]byte
	buf.PutI64BE(b[:], pos)
	if _, err := a.file.WriteAt(b[:], format.PositionOffset); err != nil {
		return errors.Wrapf(err, "cannot update write position of log fragment %s", a.filename)
	}
	a.header.Position = pos
	a.position.Store(pos)
	return nil
}

func (a *logAppender) writeState(state byte) error {
	if _, err := a.file.WriteAt([]byte{state}, format.StateOffset); err != nil {
		return errors.Wrapf(err, "cannot update state of log fragment %s", a.filename)
	}
	a.header.State = state
	return nil
}
