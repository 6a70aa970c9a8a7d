package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"

	"go.uber.org/zap"
)

func TestEmit_NotifiesAllObserversInOrder(t *testing.T) {
	emitter := NewEmitter(zap.NewNop())

	var order []int
	emitter.Register(ObserverFunc(func(e Event) error { order = append(order, 1); return nil }))
	emitter.Register(ObserverFunc(func(e Event) error { order = append(order, 2); return nil }))

	emitter.Emit(Event{Type: PhaseEntered, SessionID: "s1"})

	assert.Equal(t, []int{1, 2}, order)
}

func TestEmit_ObserverErrorDoesNotStopDelivery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	emitter := NewEmitter(zap.New(core))

	var secondCalled bool
	emitter.Register(ObserverFunc(func(e Event) error { return errors.New("boom") }))
	emitter.Register(ObserverFunc(func(e Event) error { secondCalled = true; return nil }))

	emitter.Emit(Event{Type: WorkflowCompleted})

	assert.True(t, secondCalled)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "returned error")
}

func TestEmit_ObserverPanicIsRecoveredAndLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	emitter := NewEmitter(zap.New(core))

	var secondCalled bool
	emitter.Register(ObserverFunc(func(e Event) error { panic("oh no") }))
	emitter.Register(ObserverFunc(func(e Event) error { secondCalled = true; return nil }))

	assert.NotPanics(t, func() {
		emitter.Emit(Event{Type: ApprovalRejected})
	})
	assert.True(t, secondCalled)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "panicked")
}

func TestNewEmitter_NilLoggerFallsBackToNop(t *testing.T) {
	emitter := NewEmitter(nil)
	assert.NotPanics(t, func() {
		emitter.Emit(Event{Type: PhaseEntered})
	})
}

func TestLoggingObserver_NeverErrors(t *testing.T) {
	obs := LoggingObserver{Logger: zap.NewNop()}
	err := obs.Notify(Event{Type: ApprovalGranted, SessionID: "s1", Detail: "ok"})
	assert.NoError(t, err)
}
