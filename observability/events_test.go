package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"unitmint/core/types"
	"unitmint/native/launch"
)

type eventCarrier struct {
	evt *types.Event
}

func (c eventCarrier) EventType() string {
	if c.evt == nil {
		return ""
	}
	return c.evt.Type
}

func (c eventCarrier) Event() *types.Event { return c.evt }

func TestMetricsEmitterRecordsLaunchEvents(t *testing.T) {
	emitter := MetricsEmitter{}
	registry := Events()

	before := testutil.ToFloat64(registry.mints.WithLabelValues("NHB"))
	emitter.Emit(eventCarrier{evt: &types.Event{
		Type:       launch.EventTypeMinted,
		Attributes: map[string]string{"token": "nhb"},
	}})
	after := testutil.ToFloat64(registry.mints.WithLabelValues("NHB"))
	if after != before+1 {
		t.Fatalf("mint counter not incremented: before %f, after %f", before, after)
	}

	before = testutil.ToFloat64(registry.forgos.WithLabelValues("UNKNOWN"))
	emitter.Emit(eventCarrier{evt: &types.Event{
		Type:       launch.EventTypeForgone,
		Attributes: map[string]string{},
	}})
	after = testutil.ToFloat64(registry.forgos.WithLabelValues("UNKNOWN"))
	if after != before+1 {
		t.Fatalf("forgo counter not incremented: before %f, after %f", before, after)
	}

	// Events without a payload carrier are ignored.
	emitter.Emit(eventCarrier{})
}
