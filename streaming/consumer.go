package streaming

import (
	"context"

	"github.com/sqldef/powerquery/value"
)

// Batch is a fixed-size grid of rows emitted to a Consumer's on_batch
// callback (spec §4.4: "emits fixed-size batch_size grid batches").
type Batch struct {
	Rows [][]value.Value
}

// Consumer drives a Pipeline batch-at-a-time: it pulls input batches,
// feeds them through the pipeline, and re-chunks the pipeline's output
// into fixed-size batches for onBatch. Buffering is bounded to a single
// overflow slice with an in-place offset, so a batch emit never copies
// the whole overflow array — only the rows actually consumed advance
// the offset, and the backing array is reused until it's drained.
type Consumer struct {
	pipeline  *Pipeline
	batchSize int
	onBatch   func(Batch) error

	overflow       [][]value.Value
	overflowOffset int
}

// NewConsumer builds a Consumer around an already-compiled pipeline.
func NewConsumer(p *Pipeline, batchSize int, onBatch func(Batch) error) *Consumer {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Consumer{pipeline: p, batchSize: batchSize, onBatch: onBatch}
}

// Push feeds one input batch through the pipeline, emitting as many
// full-size output batches as the accumulated rows allow. It reports
// done=true once the pipeline signals downstream should stop (e.g.
// take's quota exhausted); callers must stop pulling further input in
// that case, though Push itself still drains whatever rows it was
// given.
func (c *Consumer) Push(ctx context.Context, rows [][]value.Value) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	out, done, err := c.pipeline.TransformBatch(rows)
	if err != nil {
		return false, err
	}
	if err := c.accumulate(ctx, out); err != nil {
		return false, err
	}
	return done, nil
}

// Flush runs the implicit transform_batch([]) and emits any remaining
// buffered rows as a final, possibly short, batch.
func (c *Consumer) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out, _, err := c.pipeline.TransformBatch(nil)
	if err != nil {
		return err
	}
	if err := c.accumulate(ctx, out); err != nil {
		return err
	}
	if c.overflowOffset < len(c.overflow) {
		if err := c.emit(c.overflow[c.overflowOffset:]); err != nil {
			return err
		}
		c.overflow = nil
		c.overflowOffset = 0
	}
	return nil
}

func (c *Consumer) accumulate(ctx context.Context, rows [][]value.Value) error {
	c.compact()
	c.overflow = append(c.overflow, rows...)
	for len(c.overflow)-c.overflowOffset >= c.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := c.overflowOffset + c.batchSize
		if err := c.emit(c.overflow[c.overflowOffset:end]); err != nil {
			return err
		}
		c.overflowOffset = end
	}
	return nil
}

// compact reclaims the drained prefix of overflow once it grows large
// relative to what's left, instead of shifting on every emit.
func (c *Consumer) compact() {
	if c.overflowOffset == 0 {
		return
	}
	if c.overflowOffset*2 < cap(c.overflow) {
		return
	}
	remaining := c.overflow[c.overflowOffset:]
	c.overflow = append(c.overflow[:0:0], remaining...)
	c.overflowOffset = 0
}

func (c *Consumer) emit(rows [][]value.Value) error {
	batch := make([][]value.Value, len(rows))
	copy(batch, rows)
	return c.onBatch(Batch{Rows: batch})
}
