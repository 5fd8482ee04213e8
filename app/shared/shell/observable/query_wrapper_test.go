package observable_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/app/shared/shell"
	"github.com/AntonStoeckl/library-loans/app/shared/shell/observable"
	"github.com/AntonStoeckl/library-loans/testutil/testdoubles"
)

type testQuery struct{}

func (testQuery) QueryType() string { return "TestQuery" }

type stubQueryHandler struct {
	result int
	err    error
}

func (h stubQueryHandler) Handle(_ context.Context, _ testQuery) (int, error) {
	return h.result, h.err
}

func Test_QueryWrapper_Handle(t *testing.T) {
	testCases := []struct {
		name    string
		handler stubQueryHandler
		status  string
		logMsg  string
		level   slog.Level
	}{
		{name: "success", handler: stubQueryHandler{result: 3}, status: shell.StatusSuccess, logMsg: shell.LogMsgQueryCompleted, level: slog.LevelInfo},
		{name: "not found", handler: stubQueryHandler{err: core.NotFoundOrExpired(core.ReasonRequestNotCompleted)}, status: shell.StatusRejected, logMsg: shell.LogMsgQueryFailed, level: slog.LevelError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			logger, logSpy := testdoubles.NewSpyLogger()
			metricsSpy := testdoubles.NewMetricsCollectorSpy()
			tracingSpy := testdoubles.NewTracingCollectorSpy()

			wrapper, err := observable.NewQueryWrapper[testQuery, int](
				tc.handler,
				observable.WithQueryMetrics[testQuery, int](metricsSpy),
				observable.WithQueryTracing[testQuery, int](tracingSpy),
				observable.WithQueryContextualLogging[testQuery, int](logger),
			)
			require.NoError(t, err)

			// act
			result, err := wrapper.Handle(context.Background(), testQuery{})

			// assert
			assert.Equal(t, tc.handler.result, result)
			assert.Equal(t, tc.handler.err, err)
			assert.Equal(t, 1, metricsSpy.CountCounter(shell.QueryHandlerCallsMetric, shell.BuildQueryLabels("TestQuery", tc.status)))
			assert.True(t, logSpy.HasLog(tc.level, tc.logMsg))

			spans := tracingSpy.FindSpans(shell.SpanNameQueryHandle)
			require.Len(t, spans, 1)
			assert.Equal(t, tc.status, spans[0].Status)
		})
	}
}
