package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	coreerrors "listingchain/core/errors"
	"listingchain/core/events"
	"listingchain/core/state"
	"listingchain/core/types"
	"listingchain/observability"
	"listingchain/storage"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	target = common.HexToAddress("0x000000000000000000000000000000000000cafe")
)

type testEvent struct {
	name string
}

func (e testEvent) EventType() string { return e.name }

func (e testEvent) Event() *types.Event {
	return &types.Event{Type: e.name, Attributes: map[string]string{"k": "v"}}
}

type sinkRecorder struct {
	events []*types.Event
}

func (s *sinkRecorder) Emit(evt events.Event) {
	s.events = append(s.events, events.Payload(evt))
}

type fixture struct {
	db     *storage.MemDB
	state  *state.Manager
	ledger *Ledger
	sink   *sinkRecorder
	spans  *tracetest.SpanRecorder
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: storage.NewMemDB(), sink: &sinkRecorder{}, spans: tracetest.NewSpanRecorder(), logs: &bytes.Buffer{}}
	f.state = state.NewManager(f.db)
	require.NoError(t, f.state.BalancePut(alice, uint256.NewInt(100)))
	require.NoError(t, f.state.Commit())

	f.ledger = New(f.state)
	f.ledger.SetSink(f.sink)
	f.ledger.SetTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.spans)).Tracer("test"))
	f.ledger.SetLogger(slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	f.ledger.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return f
}

func (f *fixture) balance(t *testing.T, addr common.Address) uint64 {
	t.Helper()
	var bal *uint256.Int
	require.NoError(t, f.ledger.View(context.Background(), func(context.Context) error {
		var err error
		bal, err = f.state.BalanceGet(addr)
		return err
	}))
	return bal.Uint64()
}

func TestExecuteCommitsWritesAndEvents(t *testing.T) {
	f := newFixture(t)
	call := types.NewCall(alice).WithValue(uint256.NewInt(30))

	receipt, err := f.ledger.Execute(context.Background(), call, "test.ok", target, func(ctx context.Context) error {
		require.Equal(t, uint64(1_700_000_000), f.ledger.Now())
		f.ledger.Emitter().Emit(testEvent{name: "test.first"})
		f.ledger.Emitter().Emit(testEvent{name: "test.second"})
		return nil
	})
	require.NoError(t, err)
	require.True(t, receipt.Succeeded())
	require.NotEmpty(t, receipt.ID)
	require.Equal(t, "30", receipt.Value)
	require.Equal(t, uint64(1_700_000_000), receipt.Timestamp)
	require.Len(t, receipt.Events, 2)
	require.Equal(t, uint64(1), receipt.Events[0].Sequence)
	require.Equal(t, uint64(2), receipt.Events[1].Sequence)

	require.Equal(t, uint64(70), f.balance(t, alice))
	require.Equal(t, uint64(30), f.balance(t, target))

	require.Len(t, f.sink.events, 2)
	require.Equal(t, "test.first", f.sink.events[0].Type)

	// Sequences continue across calls.
	receipt, err = f.ledger.Execute(context.Background(), types.NewCall(alice), "test.ok", target, func(context.Context) error {
		f.ledger.Emitter().Emit(testEvent{name: "test.third"})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), receipt.Events[0].Sequence)
}

func TestExecuteRollsBackOnError(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(observability.Ledger().Rejections("test.fail", "version_conflict"))
	call := types.NewCall(alice).WithValue(uint256.NewInt(30))

	receipt, err := f.ledger.Execute(context.Background(), call, "test.fail", target, func(context.Context) error {
		require.NoError(t, f.state.BalancePut(alice, uint256.NewInt(1_000)))
		f.ledger.Emitter().Emit(testEvent{name: "test.dropped"})
		return fmt.Errorf("%w: stale", coreerrors.ErrVersionConflict)
	})
	require.ErrorIs(t, err, coreerrors.ErrVersionConflict)
	require.False(t, receipt.Succeeded())
	require.Equal(t, "version_conflict", receipt.Reason)
	require.Empty(t, receipt.Events)

	require.Equal(t, uint64(100), f.balance(t, alice))
	require.Equal(t, uint64(0), f.balance(t, target))
	require.Empty(t, f.sink.events)
	require.Equal(t, before+1, testutil.ToFloat64(observability.Ledger().Rejections("test.fail", "version_conflict")))

	spans := f.spans.Ended()
	require.NotEmpty(t, spans)
	failed := spans[0]
	require.Equal(t, "ledger.test.fail", failed.Name())
	require.Equal(t, codes.Error, failed.Status().Code)
	require.Contains(t, f.logs.String(), "ledger call rejected")

	// The next call starts from a clean buffer.
	receipt, err = f.ledger.Execute(context.Background(), types.NewCall(alice), "test.ok", target, func(context.Context) error {
		f.ledger.Emitter().Emit(testEvent{name: "test.kept"})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	require.Equal(t, uint64(1), receipt.Events[0].Sequence)
}

func TestExecuteDiscardsPanickedCall(t *testing.T) {
	f := newFixture(t)
	require.Panics(t, func() {
		_, _ = f.ledger.Execute(context.Background(), types.NewCall(alice), "test.panic", target, func(context.Context) error {
			require.NoError(t, f.state.BalancePut(target, uint256.NewInt(777)))
			f.ledger.Emitter().Emit(testEvent{name: "test.dropped"})
			panic("engine bug")
		})
	})

	receipt, err := f.ledger.Execute(context.Background(), types.NewCall(alice), "test.ok", target, nil)
	require.NoError(t, err)
	require.Empty(t, receipt.Events)
	require.Empty(t, f.sink.events)
	require.Equal(t, uint64(0), f.balance(t, target))
	require.Zero(t, f.state.Pending())
}

func TestExecuteRejectsUnfundedValue(t *testing.T) {
	f := newFixture(t)
	ran := false
	call := types.NewCall(alice).WithValue(uint256.NewInt(101))
	receipt, err := f.ledger.Execute(context.Background(), call, "test.pay", target, func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)
	require.Equal(t, "insufficient_funds", receipt.Reason)
	require.False(t, ran)

	_, err = f.ledger.Execute(context.Background(), types.NewCall(alice).WithValue(uint256.NewInt(1)), "test.pay", common.Address{}, nil)
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
}

func TestExecuteCountsCalls(t *testing.T) {
	f := newFixture(t)
	counter := observability.Ledger().Calls("test.count", types.OutcomeSuccess)
	before := testutil.ToFloat64(counter)
	_, err := f.ledger.Execute(context.Background(), types.NewCall(alice), "test.count", target, nil)
	require.NoError(t, err)
	require.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestViewDiscardsWrites(t *testing.T) {
	f := newFixture(t)
	err := f.ledger.View(context.Background(), func(context.Context) error {
		require.NoError(t, f.state.BalancePut(alice, uint256.NewInt(5)))
		return errors.New("ignored")
	})
	require.Error(t, err)
	require.Equal(t, uint64(100), f.balance(t, alice))
	require.Zero(t, f.state.Pending())
}

func TestCallsAreSerialized(t *testing.T) {
	f := newFixture(t)
	const workers = 8
	done := make(chan struct{}, workers)
	active := 0
	maxActive := 0
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = f.ledger.Execute(context.Background(), types.NewCall(alice), "test.serial", target, func(context.Context) error {
				active++
				if active > maxActive {
					maxActive = active
				}
				time.Sleep(time.Millisecond)
				active--
				return nil
			})
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}
	require.Equal(t, 1, maxActive)
}
