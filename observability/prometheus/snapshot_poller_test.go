package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-threadhop/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workerStub struct {
	stats core.WorkerStats
}

func (s workerStub) Stats() core.WorkerStats { return s.stats }

type loopStub struct {
	stats core.LoopStats
}

func (s loopStub) Stats() core.LoopStats { return s.stats }

type registryStub struct {
	owners []core.OwnerStats
}

func (s registryStub) Snapshot() []core.OwnerStats { return s.owners }

func TestSnapshotPoller_CollectsWorkerLoopAndRegistryStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("threadhop", reg, 10*time.Millisecond)
	require.NoError(t, err)

	poller.AddWorker("worker-a", workerStub{stats: core.WorkerStats{
		Pending:      3,
		Running:      true,
		Closed:       true,
		Incarnations: 4,
	}})
	poller.AddLoop("ui", loopStub{stats: core.LoopStats{
		Pending:  2,
		Rejected: 1,
		Panics:   5,
	}})
	poller.AddRegistry("default", registryStub{owners: []core.OwnerStats{
		{Owner: "window", InBackground: 2, Queued: 1},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	require.Eventually(t, func() bool {
		pending := testutil.ToFloat64(poller.workerPending.WithLabelValues("worker-a"))
		inBackground := testutil.ToFloat64(poller.ownerInBackground.WithLabelValues("default", "window"))
		return pending == 3 && inBackground == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(poller.workerClosed.WithLabelValues("worker-a")))
	assert.Equal(t, 4.0, testutil.ToFloat64(poller.workerIncarnations.WithLabelValues("worker-a")))
	assert.Equal(t, 5.0, testutil.ToFloat64(poller.loopPanics.WithLabelValues("ui")))
	assert.Equal(t, 0.0, testutil.ToFloat64(poller.loopClosed.WithLabelValues("ui")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.registryOwners.WithLabelValues("default")))
}

func TestSnapshotPoller_RealRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("", reg, time.Hour)
	require.NoError(t, err)

	registry := core.NewRegistry(nil)
	poller.AddRegistry("live", registry)
	poller.collectOnce()

	assert.Equal(t, 0.0, testutil.ToFloat64(poller.registryOwners.WithLabelValues("live")))
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("threadhop", reg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}
