// Package events implements the Event Emitter (§4.6, §4.2 step 7):
// dispatch of workflow lifecycle events to registered observers, with
// per-observer panic/error isolation so one misbehaving observer cannot
// disrupt the orchestrator or its siblings.
//
// Grounded on the teacher's internal/ux package, which already treats
// terminal output as a side-channel the core workflow never depends on
// for correctness — generalized here to an arbitrary observer list and
// logged via the same go.uber.org/zap logger the rest of the engine
// uses (internal/obslog), since nothing in the retrieved corpus ships a
// dedicated pub/sub library for this and the domain is a handful of
// synchronous fan-out calls.
package events

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scottcm/aiwf-engine/internal/model"
)

// Type enumerates the event kinds the orchestrator emits.
type Type string

const (
	PhaseEntered      Type = "PHASE_ENTERED"
	ApprovalGranted   Type = "APPROVAL_GRANTED"
	ApprovalRequired  Type = "APPROVAL_REQUIRED"
	ApprovalRejected  Type = "APPROVAL_REJECTED"
	WorkflowCompleted Type = "WORKFLOW_COMPLETED"
	WorkflowFailed    Type = "WORKFLOW_FAILED"
	WorkflowCancelled Type = "WORKFLOW_CANCELLED"
)

// Event is the payload delivered to every observer.
type Event struct {
	Type      Type
	SessionID string
	Timestamp string
	Phase     model.Phase
	Iteration int
	Detail    string
}

// Observer receives emitted events. An Observer may return an error;
// it may also panic — both are caught and logged by the Emitter without
// propagating.
type Observer interface {
	Notify(e Event) error
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(e Event) error

func (f ObserverFunc) Notify(e Event) error { return f(e) }

// Emitter fans an Event out to every registered Observer.
type Emitter struct {
	observers []Observer
	logger    *zap.Logger
}

// NewEmitter returns an Emitter that logs observer failures through
// logger. A nil logger falls back to zap.NewNop().
func NewEmitter(logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{logger: logger}
}

// Register adds an observer. Order of registration is the order
// observers are notified in.
func (e *Emitter) Register(o Observer) {
	e.observers = append(e.observers, o)
}

// Emit notifies every registered observer, isolating each one: an error
// or panic from one observer is logged and does not stop delivery to the
// rest.
func (e *Emitter) Emit(evt Event) {
	for _, obs := range e.observers {
		e.notifyOne(obs, evt)
	}
}

func (e *Emitter) notifyOne(obs Observer, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event observer panicked",
				zap.String("event_type", string(evt.Type)),
				zap.String("session_id", evt.SessionID),
				zap.Any("recovered", r),
			)
		}
	}()

	if err := obs.Notify(evt); err != nil {
		e.logger.Error("event observer returned error",
			zap.String("event_type", string(evt.Type)),
			zap.String("session_id", evt.SessionID),
			zap.Error(err),
		)
	}
}

// LoggingObserver is a default Observer that records every event at info
// level — useful as the sole observer when no external integration is
// configured.
type LoggingObserver struct {
	Logger *zap.Logger
}

func (o LoggingObserver) Notify(e Event) error {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info(fmt.Sprintf("event: %s", e.Type),
		zap.String("session_id", e.SessionID),
		zap.String("phase", string(e.Phase)),
		zap.Int("iteration", e.Iteration),
		zap.String("detail", e.Detail),
	)
	return nil
}
