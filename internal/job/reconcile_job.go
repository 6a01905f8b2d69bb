package job

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/fitframework/nacos-registry-adapter/pkg/registry/nacos"
)

// ReconciliationJob periodically re-publishes every actively subscribed
// Fitable's current result on its delivery channel, the same way a registry
// push callback would. A delivery channel that is full when a push arrives
// drops the event and only logs it (facade.go's Deliver); this job is the
// belt-and-suspenders catch-up so a subscriber that missed one push still
// converges on the next tick.
//
// Cadence matches the registry's own heartbeat interval (spec §4.A's
// preserved.heart.beat.* keys): a missed push is no worse than a missed
// heartbeat tick, so there is no reason to reconcile more eagerly than the
// registry itself expects liveness to be confirmed.
type ReconciliationJob struct {
	TickerJob
}

// NewReconciliationJob builds a ReconciliationJob driving facade.Reconcile
// on a fixed interval.
func NewReconciliationJob(facade *nacos.Facade, interval time.Duration, logger log.Logger) *ReconciliationJob {
	j := &ReconciliationJob{}
	j.TickerJob = newTickerJob("subscription-reconciler", interval, logger, func(ctx context.Context) {
		facade.Reconcile(ctx)
	}, false)
	return j
}
