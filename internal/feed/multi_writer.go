package feed

import "context"

// MultiWriter fan-outs points to multiple writers in order. The first error
// stops the fan-out.
type MultiWriter struct {
	writers []PointWriter
}

// NewMultiWriter creates a new MultiWriter. Nil writers are skipped.
func NewMultiWriter(ws ...PointWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Write sends a point to all writers.
func (mw *MultiWriter) Write(ctx context.Context, p Point) error {
	for _, w := range mw.writers {
		if err := w.Write(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many writers are attached.
func (mw *MultiWriter) Len() int { return len(mw.writers) }
