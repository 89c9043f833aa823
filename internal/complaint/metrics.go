package complaint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var complaintsFiled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "complaints_filed_total",
	Help: "Complaints that removed an item and were recorded",
})

var autoBlocks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "auto_blocks_total",
	Help: "Users blocked automatically after reaching the complaint threshold",
})
