package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "listingchain/core/errors"
	"listingchain/core/events"
	"listingchain/core/types"
	"listingchain/native/bank"
	"listingchain/observability"
)

const tracerName = "listingchain/core/ledger"

var errNilState = errors.New("ledger: state not configured")

// State is the transactional store the ledger drives. Writes made during a
// call stay pending until Commit; Discard rolls them back.
type State interface {
	bank.State
	EventSequence() (uint64, error)
	SetEventSequence(uint64) error
	Commit() error
	Discard()
}

// Ledger executes calls one at a time. Each call runs against a fixed
// timestamp, either commits every write and event it produced or none of
// them, and publishes its events with consecutive sequence numbers.
type Ledger struct {
	mu      sync.Mutex
	state   State
	buffer  *events.Buffer
	sink    events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.LedgerMetrics
	clock   func() time.Time
	now     uint64
}

// New creates a ledger over st.
func New(st State) *Ledger {
	return &Ledger{
		state:   st,
		buffer:  events.NewBuffer(),
		sink:    events.NoopEmitter{},
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		metrics: observability.Ledger(),
		clock:   time.Now,
	}
}

// SetSink configures where committed events are published.
func (l *Ledger) SetSink(sink events.Emitter) {
	if sink == nil {
		sink = events.NoopEmitter{}
	}
	l.sink = sink
}

// SetLogger overrides the logger. Passing nil restores slog.Default.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger
}

// SetTracer overrides the tracer. Passing nil restores the global provider's.
func (l *Ledger) SetTracer(tracer trace.Tracer) {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	l.tracer = tracer
}

// SetClock overrides the time source. Primarily intended for tests.
func (l *Ledger) SetClock(clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	l.clock = clock
}

// Emitter returns the emitter engines must use. Events are held there until
// the call that produced them commits.
func (l *Ledger) Emitter() events.Emitter { return l.buffer }

// Now returns the timestamp of the call in progress, or the clock when no call
// is running. Engines use it as their time source so every check within one
// call sees the same instant.
func (l *Ledger) Now() uint64 {
	if l.now != 0 {
		return l.now
	}
	return uint64(l.clock().Unix())
}

// Execute runs fn as a single call. The attached value moves from the caller
// to target before fn runs. On any error every write and event is discarded
// and a failed receipt is returned together with the error.
func (l *Ledger) Execute(ctx context.Context, call types.Call, method string, target common.Address, fn func(context.Context) error) (*types.Receipt, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			l.state.Discard()
			l.buffer.Reset()
			panic(r)
		}
	}()

	start := time.Now()
	l.now = uint64(l.clock().Unix())
	defer func() { l.now = 0 }()

	value := call.AttachedValue()
	ctx, span := l.tracer.Start(ctx, "ledger."+method, trace.WithAttributes(
		attribute.String("ledger.method", method),
		attribute.String("ledger.caller", call.Caller.Hex()),
		attribute.String("ledger.target", target.Hex()),
		attribute.String("ledger.value", value.Dec()),
	))
	defer span.End()

	receipt := &types.Receipt{
		ID:        uuid.NewString(),
		Method:    method,
		Caller:    call.Caller,
		Target:    target,
		Value:     value.Dec(),
		Timestamp: l.now,
	}

	err := l.apply(ctx, call, target, fn)
	var published []*types.Event
	if err == nil {
		published, err = l.commit()
	}
	if err != nil {
		l.state.Discard()
		l.buffer.Reset()
		receipt.Outcome = types.OutcomeFailed
		receipt.Reason = coreerrors.Reason(err)
		receipt.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, receipt.Reason)
		l.metrics.Observe(method, receipt.Outcome, receipt.Reason, time.Since(start))
		l.logger.InfoContext(ctx, "ledger call rejected",
			slog.String("id", receipt.ID),
			slog.String("method", method),
			slog.String("caller", call.Caller.Hex()),
			slog.String("target", target.Hex()),
			slog.String("reason", receipt.Reason),
			slog.Any("error", err),
		)
		return receipt, err
	}

	receipt.Outcome = types.OutcomeSuccess
	receipt.Events = make([]types.Event, 0, len(published))
	for _, evt := range published {
		receipt.Events = append(receipt.Events, *evt.Clone())
		l.sink.Emit(events.Published{Payload: evt})
		observability.Events().RecordPublished(evt.Type)
	}
	span.SetAttributes(attribute.Int("ledger.events", len(published)))
	span.SetStatus(codes.Ok, "")
	l.metrics.Observe(method, receipt.Outcome, "", time.Since(start))
	l.logger.DebugContext(ctx, "ledger call applied",
		slog.String("id", receipt.ID),
		slog.String("method", method),
		slog.String("caller", call.Caller.Hex()),
		slog.String("target", target.Hex()),
		slog.Int("events", len(published)),
	)
	return receipt, nil
}

func (l *Ledger) apply(ctx context.Context, call types.Call, target common.Address, fn func(context.Context) error) error {
	if value := call.AttachedValue(); !value.IsZero() {
		if target == (common.Address{}) {
			return fmt.Errorf("%w: value attached to a call without a target", coreerrors.ErrInvalidArgument)
		}
		if err := bank.Transfer(l.state, call.Caller, target, value); err != nil {
			return err
		}
	}
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// commit stamps the buffered events with sequence numbers continuing from the
// last published one and writes all pending state in one batch.
func (l *Ledger) commit() ([]*types.Event, error) {
	pending := l.buffer.Drain()
	seq, err := l.state.EventSequence()
	if err != nil {
		return nil, err
	}
	published := make([]*types.Event, 0, len(pending))
	for _, evt := range pending {
		payload := events.Payload(evt)
		if payload == nil {
			continue
		}
		seq++
		stamped := payload.Clone()
		stamped.Sequence = seq
		published = append(published, stamped)
	}
	if len(published) > 0 {
		if err := l.state.SetEventSequence(seq); err != nil {
			return nil, err
		}
	}
	if err := l.state.Commit(); err != nil {
		return nil, err
	}
	return published, nil
}

// View runs a read-only function under the ledger lock. Anything it writes is
// discarded.
func (l *Ledger) View(ctx context.Context, fn func(context.Context) error) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = uint64(l.clock().Unix())
	defer func() {
		l.now = 0
		l.state.Discard()
		l.buffer.Reset()
	}()
	return fn(ctx)
}
