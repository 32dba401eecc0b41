package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/zeusave/internal/core/observability/log"
)

type Kind uint8

const (
	KindSave Kind = iota + 1
	KindLoad
	KindSaveLevel
	KindLoadLevel
)

func (k Kind) String() string {
	switch k {
	case KindSave:
		return "save"
	case KindLoad:
		return "load"
	case KindSaveLevel:
		return "save_level"
	case KindLoadLevel:
		return "load_level"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Progress is the result of one resumption of a frame sliced loop.
type Progress uint8

const (
	Continue Progress = iota
	Done
)

// Task is a resumable state machine. Start, Tick and Cancel are called from the tick goroutine.
type Task interface {
	ID() uuid.UUID
	Kind() Kind
	// Start runs the synchronous part of the task. The task may finish inside Start.
	Start(ctx context.Context)
	Tick(dt time.Duration)
	Started() bool
	Finished() bool
	Succeeded() bool
	// Cancel blocks until in-flight background work completes, then finishes the task.
	Cancel()
}

type base struct {
	id        uuid.UUID
	kind      Kind
	sess      *Session
	logger    log.Log
	ctx       context.Context
	startedAt time.Time

	started   bool
	finished  bool
	succeeded bool
}

func newBase(kind Kind, sess *Session, fields ...log.Field) base {
	id := uuid.New()
	fields = append([]log.Field{log.String("task_id", id.String()), log.String("kind", kind.String())}, fields...)
	return base{
		id:     id,
		kind:   kind,
		sess:   sess,
		logger: sess.logger().Named("tasks").With(fields...),
		ctx:    context.Background(),
	}
}

func (b *base) ID() uuid.UUID   { return b.id }
func (b *base) Kind() Kind      { return b.kind }
func (b *base) Started() bool   { return b.started }
func (b *base) Finished() bool  { return b.finished }
func (b *base) Succeeded() bool { return b.succeeded }

func (b *base) begin(ctx context.Context) {
	if ctx != nil {
		b.ctx = ctx
	}
	b.started = true
	b.startedAt = time.Now()
}

// end marks the task finished and reports whether this call did it.
func (b *base) end(ok bool) bool {
	if b.finished {
		return false
	}
	b.finished = true
	b.succeeded = ok
	took := time.Since(b.startedAt)
	b.sess.Metrics.ObserveTask(b.kind.String(), took, ok)
	b.logger.Debug("Task finished", log.Bool("succeeded", ok), log.Duration("took", took))
	return true
}
