// Package retry re-invokes a fallible unit of work under a retry predicate.
//
// It absorbs transient write contention (lock waits, deadlock victims) on
// insert, update and delete statements. Reads are never retried.
package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	failuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqlcoll_retry_failures_total",
		Help: "Total number of failed attempts observed by the retry executor.",
	})
	exhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqlcoll_retry_exhausted_total",
		Help: "Total number of units of work which failed after the retry predicate declined another attempt.",
	})
)
