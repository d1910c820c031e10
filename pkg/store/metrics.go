package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commsdb_store_writes_total",
		Help: "Document writes by record kind.",
	}, []string{"kind"})

	reads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commsdb_store_reads_total",
		Help: "Document reads by record kind.",
	}, []string{"kind"})

	purges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commsdb_store_purged_messages_total",
		Help: "Soft-deleted messages removed by the retention sweeper.",
	})
)
