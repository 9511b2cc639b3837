// Package txn makes every store operation transaction-composable.
//
// An operation receives an optional *Tx. When it is nil, the operation is the
// owner: Run acquires a connection from the Provider, begins a transaction,
// runs the body and commits or rolls back before releasing the connection.
// When a *Tx is supplied, the operation is a participant: its body runs on
// that handle and commit, rollback and release are left to the owner
// further up the call tree.
//
// Because the owner/participant decision lives in Run, store code is the same
// on both paths. Compound operations call other operations with their own
// handle, and callers extend an operation's atomic scope with a Next
// continuation, which runs on the same handle before the operation returns.
//
// A *Tx belongs to one call tree and must not be shared between goroutines.
package txn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqlcoll_txn_commits_total",
		Help: "Total number of owning transactions committed.",
	})
	rollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqlcoll_txn_rollbacks_total",
		Help: "Total number of owning transactions rolled back.",
	})
)
