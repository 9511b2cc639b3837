package record

import "github.com/roach88/sqlcoll/internal/digest"

// MapEntry is one key/value row of a map table.
type MapEntry struct {
	Key   string  `json:"key" yaml:"key"`
	Value *string `json:"value" yaml:"value"`
}

// KeyDigest returns the primary key of the entry's row.
func (e MapEntry) KeyDigest() string {
	return digest.String(e.Key)
}

// ValueDigest returns the indexed digest of the entry's value.
func (e MapEntry) ValueDigest() string {
	return digest.Of(e.Value)
}

// QueueEntry is one row of a queue table. SeqID is assigned by the engine on
// insert; it is zero for entries that were never stored.
type QueueEntry struct {
	SeqID   int64   `json:"seq_id" yaml:"seq_id"`
	Content *string `json:"content" yaml:"content"`
}

// ContentDigest returns the indexed digest of the entry's content.
func (e QueueEntry) ContentDigest() string {
	return digest.Of(e.Content)
}

// Contents returns the content of each entry, in order.
func Contents(entries []QueueEntry) []*string {
	out := make([]*string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Content)
	}
	return out
}

// ToMap converts entries to a key → value map. Later duplicates win.
func ToMap(entries []MapEntry) map[string]*string {
	out := make(map[string]*string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out
}
