package filter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var verdictsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "filter_verdicts_total",
	Help: "Content filter outcomes by category; passes are counted as \"pass\"",
}, []string{"category"})

func observe(v Verdict) {
	if !v.Blocked {
		verdictsCounter.WithLabelValues("pass").Inc()
		return
	}
	verdictsCounter.WithLabelValues(string(v.Category)).Inc()
}
