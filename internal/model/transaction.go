package model

import (
	"fmt"
	"strings"
)

// TransactionID is the composite key of a transaction record. The same
// record id can recur across sources, so both parts are required to identify
// a transaction.
type TransactionID struct {
	RecordID string `json:"record_id"`
	SourceID string `json:"source_id"`
}

// Key returns the canonical string form "recordID@sourceID" used as the
// storage and set-membership key.
func (id TransactionID) Key() string {
	return id.RecordID + "@" + id.SourceID
}

// String implements fmt.Stringer.
func (id TransactionID) String() string {
	return id.Key()
}

// IsZero reports whether either component of the id is empty.
func (id TransactionID) IsZero() bool {
	return id.RecordID == "" || id.SourceID == ""
}

// ParseTransactionID parses the canonical "recordID@sourceID" form.
func ParseTransactionID(key string) (TransactionID, error) {
	idx := strings.LastIndex(key, "@")
	if idx <= 0 || idx == len(key)-1 {
		return TransactionID{}, fmt.Errorf("invalid transaction id %q: want recordID@sourceID", key)
	}
	return TransactionID{RecordID: key[:idx], SourceID: key[idx+1:]}, nil
}

// Transaction represents a single transaction record from the catalog store.
// Transactions are immutable for the duration of a processing run.
type Transaction struct {
	ID          TransactionID
	MerchantRef string
	Narrative   string
	CategoryID  int64
	// BrandID is a prior assignment carried by the catalog, advisory only;
	// zero means unassigned.
	BrandID int64
}
