package achievement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var grantsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "achievements_granted_total",
	Help: "Achievements granted, by achievement id",
}, []string{"achievement"})
