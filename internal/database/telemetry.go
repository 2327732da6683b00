package database

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedPool wraps a DatabasePool and opens a client span per call.
type TracedPool struct {
	pool   DatabasePool
	tracer trace.Tracer
}

// NewTracedPool creates a new traced pool.
func NewTracedPool(pool DatabasePool, tracer trace.Tracer) *TracedPool {
	return &TracedPool{
		pool:   pool,
		tracer: tracer,
	}
}

func (p *TracedPool) start(ctx context.Context, operation, sql string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statementVerb(sql)),
		),
	)
}

// Exec implements DatabasePool.
func (p *TracedPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := p.start(ctx, "exec", sql)
	defer span.End()

	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		recordSpanError(span, err)
		return tag, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	return tag, nil
}

// Query implements DatabasePool.
func (p *TracedPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := p.start(ctx, "query", sql)
	defer span.End()

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		recordSpanError(span, err)
	}
	return rows, err
}

// Begin implements DatabasePool.
func (p *TracedPool) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := p.start(ctx, "begin", "BEGIN")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		recordSpanError(span, err)
	}
	return tx, err
}

// statementVerb keeps the leading keywords of a statement, never its arguments.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return strings.ToUpper(strings.Join(fields, " "))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
