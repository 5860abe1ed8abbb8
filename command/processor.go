package command

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/logging"
)

// Observer receives one callback per dispatched command.
type Observer interface {
	ObserveCommand(word string, dur time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveCommand(string, time.Duration, error) {}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	Logger   logging.Logger
	Observer Observer
}

// Processor drains a session's queue through a dispatch Tree. One call to
// Process is one user turn.
type Processor struct {
	core.LoggerAdapter
	tree     *Tree
	observer Observer
}

// NewProcessor creates a processor over tree.
func NewProcessor(tree *Tree, optFns ...func(o *ProcessorOptions)) *Processor {
	opts := ProcessorOptions{Logger: logging.NoOpLogger{}, Observer: noopObserver{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Processor{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		tree:          tree,
		observer:      opts.Observer,
	}
}

// Tree returns the dispatch root.
func (p *Processor) Tree() *Tree { return p.tree }

// Process pushes line as the sole initial queue entry, then pops and
// dispatches commands in FIFO order until the queue is empty. Commands that
// handlers enqueue meanwhile run in the same turn.
//
// Failures of individual commands, panics included, are reported to
// cc.Interaction as error events and processing continues with the context
// as it was before the failing command: a replaced context is discarded,
// commands the handler queued are dropped and Values are restored. Thread
// appends are kept since the thread records what happened. Only ctx
// cancellation ends the turn early, in which case the remaining queue is
// dropped and ctx.Err() returned.
func (p *Processor) Process(ctx context.Context, cc *Context, line string) (*Context, error) {
	if n := cc.Queue.Clear(); n > 0 {
		p.LogWarn("command.queue.stale", "session", cc.SessionID, "dropped", n)
	}
	cc.Queue.Push(line)

	for {
		if err := ctx.Err(); err != nil {
			dropped := cc.Queue.Clear()
			p.LogInfo("command.turn.cancelled", "session", cc.SessionID, "dropped", dropped)
			return cc, err
		}

		next, ok := cc.Queue.Pop()
		if !ok {
			return cc, nil
		}

		cc = p.dispatch(ctx, cc, next)
	}
}

func (p *Processor) dispatch(ctx context.Context, cc *Context, line string) (out *Context) {
	req := ParseRequest(line)
	start := time.Now()
	out = cc

	queued := cc.Queue.Len()
	values := maps.Clone(cc.Values)
	rollback := func() {
		if n := cc.Queue.Truncate(queued); n > 0 {
			p.LogDebug("command.queue.rollback", "session", cc.SessionID, "command", req.Word, "dropped", n)
		}
		cc.Values = values
	}

	defer func() {
		if r := recover(); r != nil {
			err := core.NewError(core.ErrCodeHandlerPanic, fmt.Sprintf("command %q panicked", req.Word), fmt.Errorf("%v", r))
			p.LogError("command.panic", "session", cc.SessionID, "command", req.Word, "recover", r)
			p.observer.ObserveCommand(req.Word, time.Since(start), err)
			rollback()
			cc.Interaction.Notify(core.NewErrorEvent(err))
			out = cc
		}
	}()

	p.LogDebug("command.dispatch", "session", cc.SessionID, "command", req.Word, "queued", cc.Queue.Len())

	next, err := p.tree.Dispatch(ctx, cc, line)
	p.observer.ObserveCommand(req.Word, time.Since(start), err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return cc
		}
		p.LogWarn("command.failed", "session", cc.SessionID, "command", req.Word, "code", core.CodeOf(err), "error", err.Error())
		rollback()
		cc.Interaction.Notify(core.NewErrorEvent(err))
		return cc
	}

	if next == nil {
		return cc
	}
	return next
}
