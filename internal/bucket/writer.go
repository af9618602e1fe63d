package bucket

import (
	"context"
	"fmt"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
)

// Writer appends rows to the topic backing a type at a period.
type Writer struct {
	registry *Registry
	sink     Sink
}

// NewWriter creates a writer.
func NewWriter(registry *Registry, sink Sink) *Writer {
	return &Writer{registry: registry, sink: sink}
}

// Append encodes rows and sends them, in order, to the resolved topic. It
// stops at the first failure.
func (w *Writer) Append(ctx context.Context, t Type, period timeframe.Timeframe, rows ...aggregation.Row) error {
	dst := w.registry.ResolveWrite(t, period)
	topic := PhysicalName(dst, period)
	return w.send(ctx, dst, topic, rows)
}

// AppendTo sends rows to an explicit topic, deriving keys from t.
func (w *Writer) AppendTo(ctx context.Context, t Type, topic string, rows ...aggregation.Row) error {
	return w.send(ctx, t, topic, rows)
}

func (w *Writer) send(ctx context.Context, t Type, topic string, rows []aggregation.Row) error {
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := RowKey(t, row)
		if err != nil {
			return fmt.Errorf("append to %s: %w", topic, err)
		}
		value, err := row.Encode()
		if err != nil {
			return fmt.Errorf("append to %s: %w", topic, err)
		}
		if err := w.sink.Send(ctx, topic, []byte(key), value); err != nil {
			return fmt.Errorf("append to %s: %w", topic, err)
		}
	}
	return nil
}
