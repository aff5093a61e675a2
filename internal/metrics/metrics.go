package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zep-us/callbridge/pkg/callmetrics"
)

const Namespace = callmetrics.Namespace

// QueueDepthGauge is refreshed by the app on every request from the executor's backlog
var QueueDepthGauge = callmetrics.QueueDepth

// Register exposes the library collectors on reg
func Register(reg prometheus.Registerer) error {
	return callmetrics.Register(reg)
}
