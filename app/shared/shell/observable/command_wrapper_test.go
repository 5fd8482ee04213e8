package observable_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/app/shared/shell"
	"github.com/AntonStoeckl/library-loans/app/shared/shell/observable"
	"github.com/AntonStoeckl/library-loans/testutil/testdoubles"
)

type testCommand struct{}

func (testCommand) CommandType() string { return "TestCommand" }

type stubCommandHandler struct {
	result core.LoanResult
	meta   shell.HandlerResult
	err    error
}

func (h stubCommandHandler) Handle(_ context.Context, _ testCommand) (core.LoanResult, shell.HandlerResult, error) {
	return h.result, h.meta, h.err
}

type spies struct {
	metrics *testdoubles.MetricsCollectorSpy
	tracing *testdoubles.TracingCollectorSpy
	logs    *testdoubles.LogHandlerSpy
}

func wrap(t *testing.T, handler stubCommandHandler) (*observable.CommandWrapper[testCommand], spies) {
	logger, logSpy := testdoubles.NewSpyLogger()
	s := spies{
		metrics: testdoubles.NewMetricsCollectorSpy(),
		tracing: testdoubles.NewTracingCollectorSpy(),
		logs:    logSpy,
	}

	wrapper, err := observable.NewCommandWrapper[testCommand](
		handler,
		observable.WithCommandMetrics[testCommand](s.metrics),
		observable.WithCommandTracing[testCommand](s.tracing),
		observable.WithCommandLogging[testCommand](logger),
	)
	require.NoError(t, err)

	return wrapper, s
}

func Test_CommandWrapper_Handle_Success(t *testing.T) {
	// arrange
	wrapper, s := wrap(t, stubCommandHandler{
		result: core.LoanResult{MemberID: 7},
		meta:   shell.HandlerResult{RetryAttempts: 1, ItemCount: 2, LastErrorType: "none"},
	})

	// act
	result, _, err := wrapper.Handle(context.Background(), testCommand{})

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.MemberID)
	assert.Equal(t, 1, s.metrics.CountCounter(shell.CommandHandlerCallsMetric, shell.BuildCommandLabels("TestCommand", shell.StatusSuccess)))
	assert.Equal(t, 1, s.metrics.CountDuration(shell.CommandHandlerDurationMetric, shell.BuildCommandLabels("TestCommand", shell.StatusSuccess)))
	assert.InDelta(t, 2.0, s.metrics.SumValues(shell.CommandHandlerItemsMetric, nil), 0.001)
	assert.Equal(t, 0, s.metrics.CountCounter(shell.CommandHandlerRetriesMetric, nil))
	assert.True(t, s.logs.HasLog(slog.LevelInfo, shell.LogMsgCommandStarted))
	assert.True(t, s.logs.HasLogWithAttr(slog.LevelInfo, shell.LogMsgCommandCompleted, shell.LogAttrItemCount))

	spans := s.tracing.FindSpans(shell.SpanNameCommandHandle)
	require.Len(t, spans, 1)
	assert.Equal(t, shell.StatusSuccess, spans[0].Status)
}

func Test_CommandWrapper_Handle_Replayed(t *testing.T) {
	wrapper, s := wrap(t, stubCommandHandler{
		result: core.LoanResult{MemberID: 7, Replayed: true},
		meta:   shell.NewReplayedResult(),
	})

	_, _, err := wrapper.Handle(context.Background(), testCommand{})

	require.NoError(t, err)
	assert.Equal(t, 1, s.metrics.CountCounter(shell.CommandHandlerReplayedMetric, nil))
	assert.Empty(t, s.metrics.GetValueRecords(), "replays touch no items")
}

func Test_CommandWrapper_Handle_BusinessFailureIsRejectedNotError(t *testing.T) {
	// arrange
	wrapper, s := wrap(t, stubCommandHandler{err: core.Conflict(core.ReasonNotAvailable).ForItem(3)})

	// act
	_, _, err := wrapper.Handle(context.Background(), testCommand{})

	// assert
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, 1, s.metrics.CountCounter(shell.CommandHandlerCallsMetric, shell.BuildCommandLabels("TestCommand", shell.StatusRejected)))
	assert.Equal(t, 1, s.metrics.CountCounter(shell.CommandHandlerBusinessFailureMetric, map[string]string{shell.LogAttrReason: core.ReasonNotAvailable}))
	assert.True(t, s.logs.HasLog(slog.LevelInfo, shell.LogMsgCommandRejected))
	assert.False(t, s.logs.HasLog(slog.LevelError, shell.LogMsgCommandFailed))
}

func Test_CommandWrapper_Handle_ErrorClassification(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status string
	}{
		{name: "lock timeout", err: core.LockTimeout(core.ReasonLockTimeout), status: shell.StatusLockTimeout},
		{name: "canceled", err: errors.Join(core.ErrInternal, context.Canceled), status: shell.StatusCanceled},
		{name: "deadline", err: context.DeadlineExceeded, status: shell.StatusTimeout},
		{name: "infrastructure", err: errors.Join(core.ErrInternal, errors.New("connection refused")), status: shell.StatusError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapper, s := wrap(t, stubCommandHandler{err: tc.err})

			_, _, err := wrapper.Handle(context.Background(), testCommand{})

			assert.Error(t, err)
			assert.Equal(t, 1, s.metrics.CountCounter(shell.CommandHandlerCallsMetric, shell.BuildCommandLabels("TestCommand", tc.status)))
		})
	}
}

func Test_CommandWrapper_Handle_RecordsRetries(t *testing.T) {
	wrapper, s := wrap(t, stubCommandHandler{
		meta: shell.HandlerResult{RetryAttempts: 3, LastErrorType: "none"},
	})

	_, _, err := wrapper.Handle(context.Background(), testCommand{})

	require.NoError(t, err)
	assert.Equal(t, 1, s.metrics.CountCounter(shell.CommandHandlerRetriesMetric, map[string]string{"attempt_number": "2"}))
	assert.Equal(t, 1, s.metrics.CountDuration(shell.CommandHandlerRetryDelayMetric, nil))
}
