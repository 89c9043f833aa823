package community

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var helpCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "help_responses_total",
	Help: "Help requests answered",
})

var lostNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notifications_lost_total",
	Help: "Notifications that could not be handed to the hub",
}, []string{"kind"})
