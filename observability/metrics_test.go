package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// The hub runs without metrics in tests, so every recording method must
// tolerate a nil receiver.
func TestNilReceiverSafety(t *testing.T) {
	var m *HubMetrics
	assert.NotPanics(t, func() {
		m.ConnOpened()
		m.ConnClosed()
		m.MessageRouted("chat")
		m.FrameDropped()
		m.SummaryRefresh("success")
		m.MemoryError("ingest")
		m.InsightObserved("knowledge", time.Second)
	})
}
