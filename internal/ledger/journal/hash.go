// Package journal builds and verifies the per-company hash chain of journal entries.
//
// The content hash of an entry is the lowercase hex SHA-256 of this compact JSON,
// keys in this order, bookings in stored order, no trailing newline:
//
//	{"bookings":[{"account_id":1,"type":"debit","amount_cents":10000}],
//	 "transaction_id":"<uuid>","entry_type":"POSTING",
//	 "occurred_at":"2006-01-02T15:04:05.000000Z"}
//
// The chain hash is the hex SHA-256 of the previous tail followed by the content
// hash. The first entry of a company links to the empty string and stores no
// previous hash.
package journal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// TimeLayout is the canonical occurrence timestamp format.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Canonical returns the bytes hashed into the content hash.
func Canonical(entry ledger.JournalEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"bookings":[`)
	for i, b := range entry.Bookings {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"account_id":`)
		buf.WriteString(strconv.FormatInt(b.AccountID, 10))
		buf.WriteString(`,"type":`)
		writeString(&buf, string(b.Type))
		buf.WriteString(`,"amount_cents":`)
		buf.WriteString(strconv.FormatInt(int64(b.AmountCents), 10))
		buf.WriteByte('}')
	}
	buf.WriteString(`],"transaction_id":`)
	writeString(&buf, entry.TransactionID.String())
	buf.WriteString(`,"entry_type":`)
	writeString(&buf, string(entry.Type))
	buf.WriteString(`,"occurred_at":`)
	writeString(&buf, Timestamp(entry.OccurredAt))
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	// Marshalling a string cannot fail.
	raw, _ := json.Marshal(s)
	buf.Write(raw)
}

// Timestamp renders t in UTC at microsecond precision.
func Timestamp(t time.Time) string {
	return Normalize(t).Format(TimeLayout)
}

// Normalize truncates t to the precision the chain stores.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// ContentHash hashes the canonical form of entry.
func ContentHash(entry ledger.JournalEntry) string {
	sum := sha256.Sum256(Canonical(entry))
	return hex.EncodeToString(sum[:])
}

// ChainHash links a content hash to the previous tail. Genesis uses an empty prev.
func ChainHash(prev, content string) string {
	sum := sha256.Sum256([]byte(prev + content))
	return hex.EncodeToString(sum[:])
}

// Seal fills in the hashes of entry against prev, nil meaning genesis.
func Seal(entry ledger.JournalEntry, prev *string) ledger.JournalEntry {
	entry.OccurredAt = Normalize(entry.OccurredAt)
	entry.ContentHash = ContentHash(entry)
	link := ""
	entry.PreviousHash = nil
	if prev != nil {
		p := *prev
		entry.PreviousHash = &p
		link = p
	}
	entry.ChainHash = ChainHash(link, entry.ContentHash)
	return entry
}
