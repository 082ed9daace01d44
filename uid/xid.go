package uid

import (
	"encoding/hex"
	"fmt"
)

// FormatID identifies Xids created by this transaction manager. Recovery
// ignores in-doubt Xids carrying any other format id: they belong to a
// different manager sharing the same resource.
const FormatID int32 = 0x42544d00

// Xid is the branch identifier handed to a resource manager: the global
// transaction id plus a branch qualifier distinguishing each enlisted
// resource within the transaction.
type Xid struct {
	FormatID            int32
	GlobalTransactionID Uid
	BranchQualifier     []byte
}

// String renders the Xid in the conventional gtrid:bqual hex form.
func (x Xid) String() string {
	return fmt.Sprintf("%s:%s (format id %d)",
		x.GlobalTransactionID.String(), hex.EncodeToString(x.BranchQualifier), x.FormatID)
}
