// Package record defines the rows exchanged between the map store, the queue
// store and their callers, plus the sentinel errors for contract violations.
//
// Values and contents are *string: nil stands for SQL NULL. Digests are
// derived on demand via the digest package and never stored on the struct.
package record
