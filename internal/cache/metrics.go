package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supportd_cache_hits_total",
		Help: "Memoization cache hits, labeled by cache name.",
	}, []string{"cache"})

	missesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supportd_cache_misses_total",
		Help: "Memoization cache misses, labeled by cache name.",
	}, []string{"cache"})
)
