package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain/events"
)

type testEvent struct {
	events.Base
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{Base: events.NewBase(eventType, "test", id.New())}
}

type testHandler struct {
	types   []string
	handled []events.Event
	err     error
	panics  bool
}

func (h *testHandler) Handle(_ context.Context, evt events.Event) error {
	if h.panics {
		panic("boom")
	}
	h.handled = append(h.handled, evt)
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.types }

func TestSyncBus_Publish(t *testing.T) {
	bus := NewSyncBus(zap.NewNop())

	created := &testHandler{types: []string{"transfer.created"}}
	all := &testHandler{}
	bus.Subscribe(created)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("transfer.created"),
		newTestEvent("transfer.deleted"),
	))

	assert.Len(t, created.handled, 1)
	assert.Len(t, all.handled, 2)
}

func TestSyncBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewSyncBus(nil)

	h := &testHandler{types: []string{"a"}}
	bus.Subscribe(h, "b")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("a"), newTestEvent("b")))
	require.Len(t, h.handled, 1)
	assert.Equal(t, "b", h.handled[0].EventType())
}

func TestSyncBus_ErrorStopsDispatch(t *testing.T) {
	bus := NewSyncBus(zap.NewNop())

	failing := &testHandler{types: []string{"x"}, err: errors.New("row locked")}
	after := &testHandler{types: []string{"x"}}
	bus.Subscribe(failing)
	bus.Subscribe(after)

	err := bus.Publish(context.Background(), newTestEvent("x"), newTestEvent("x"))
	assert.EqualError(t, err, "row locked")
	assert.Len(t, failing.handled, 1)
	assert.Empty(t, after.handled)
}

func TestSyncBus_PanicBecomesError(t *testing.T) {
	bus := NewSyncBus(zap.NewNop())
	bus.Subscribe(&testHandler{types: []string{"x"}, panics: true})

	err := bus.Publish(context.Background(), newTestEvent("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}
