package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracedPool(t *testing.T) (*TracedPool, pgxmock.PgxPoolIface, *tracetest.SpanRecorder) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewTracedPool(mock, provider.Tracer("database-test")), mock, recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestTracedPool_RepositoryCallsAreTraced(t *testing.T) {
	pool, mock, recorder := setupTracedPool(t)

	mock.ExpectQuery("SELECT bar_date").
		WithArgs("AAPL", 5).
		WillReturnRows(pgxmock.NewRows(barColumns).AddRow(day(0), 10.0, 11.0, 9.0, 10.5, int64(100)))

	series, err := NewBarRepository(pool).GetBars(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, series, 1)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.query", spans[0].Name())
	assert.Equal(t, "postgresql", spanAttr(spans[0], "db.system").AsString())
	assert.Equal(t, "SELECT BAR_DATE, OPEN,", spanAttr(spans[0], "db.statement").AsString())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracedPool_ExecRecordsRowsAffected(t *testing.T) {
	pool, mock, recorder := setupTracedPool(t)

	mock.ExpectExec("CREATE TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, NewBarRepository(pool).EnsureSchema(context.Background()))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.exec", spans[0].Name())
	assert.Equal(t, int64(0), spanAttr(spans[0], "db.rows_affected").AsInt64())
}

func TestTracedPool_ErrorsMarkSpan(t *testing.T) {
	pool, mock, recorder := setupTracedPool(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
	err := NewBarRepository(pool).SaveBars(context.Background(), "AAPL", barsFor(1))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.begin", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "too many connections", spans[0].Status().Description)
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "INSERT INTO OHLCV_BARS", statementVerb(upsertBar))
	assert.Equal(t, "BEGIN", statementVerb("begin"))
	assert.Equal(t, "", statementVerb("   "))
}
