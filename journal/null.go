package journal

import (
	"io"

	"github.com/ilyalabun/btm/uid"
)

// NullJournal accepts and discards every logged record. With it, recovery
// presumes abort for every in-doubt branch: only suitable for setups that
// can afford to lose transactions on a crash.
type NullJournal struct{}

// NewNullJournal creates a journal that retains nothing.
func NewNullJournal() *NullJournal {
	return &NullJournal{}
}

func (n *NullJournal) Open() error  { return nil }
func (n *NullJournal) Close() error { return nil }
func (n *NullJournal) Shutdown()    {}

func (n *NullJournal) Log(transactionStatus int32, gtrid uid.Uid, uniqueNames []string) error {
	return nil
}

func (n *NullJournal) Force() error { return nil }

func (n *NullJournal) CollectDanglingRecords() (map[uid.Uid]*Record, error) {
	return make(map[uid.Uid]*Record), nil
}

func (n *NullJournal) CollectAllRecords() (*Records, error) {
	return NewRecords(), nil
}

func (n *NullJournal) ReadRecords(includeInvalid bool) (RecordIterator, error) {
	return emptyIterator{}, nil
}

type emptyIterator struct{}

func (emptyIterator) Next() (*Record, error) { return nil, io.EOF }
