package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job is one ledger file waiting to be segmented.
type Job struct {
	RunID       uuid.UUID
	Path        string
	Root        string // scanned directory; its layout is mirrored under OutDir
	OutDir      string // empty writes the result next to the ledger
	SubmittedAt time.Time
}

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor handles one job.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }
