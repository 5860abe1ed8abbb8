package interaction

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/logging"
)

// ErrClosed is returned by Ask once the interaction was closed.
var ErrClosed = errors.New("interaction closed")

// Channel is an Interaction that publishes every event to a core.Stream and
// resolves questions through Answer. Any number of consumers (a terminal
// renderer, a remote bridge, an audit logger) can subscribe to Events.
//
// Questions are tracked in a pending registry keyed by their event key.
// Answers whose parent key does not resolve to a pending question are
// discarded.
type Channel struct {
	core.LoggerAdapter

	stream *core.Stream

	mu      sync.Mutex
	pending map[uint64]pendingQuestion
	closed  chan struct{}
	once    sync.Once
}

type pendingQuestion struct {
	question core.Question
	reply    chan core.Answer
}

// ChannelOptions configures a Channel.
type ChannelOptions struct {
	Logger logging.Logger
	// Replay is how many recent events a late subscriber receives first.
	// Older events are released once the attached subscribers received them.
	// Zero or a negative value disables replay.
	Replay int
}

// DefaultReplay is the default ChannelOptions.Replay.
const DefaultReplay = 256

var _ core.Interaction = (*Channel)(nil)

// NewChannel creates an open Channel.
func NewChannel(optFns ...func(o *ChannelOptions)) *Channel {
	opts := ChannelOptions{Logger: logging.NoOpLogger{}, Replay: DefaultReplay}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Replay == 0 {
		opts.Replay = -1
	}

	return &Channel{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		stream:        core.NewStream(func(o *core.StreamOptions) { o.HistoryLimit = opts.Replay }),
		pending:       make(map[uint64]pendingQuestion),
		closed:        make(chan struct{}),
	}
}

// Subscribe attaches a consumer to the events emitted through this channel.
func (c *Channel) Subscribe(ctx context.Context) *core.Subscription {
	return c.stream.Subscribe(ctx)
}

// Notify publishes ev. Events published after Close are dropped.
func (c *Channel) Notify(ev core.Event) {
	if err := c.stream.Publish(ev); err != nil {
		c.LogDebug("interaction.notify.dropped", "kind", ev.Kind(), "key", ev.Key().String())
	}
}

// Ask publishes q and waits for Answer to deliver the matching reply.
func (c *Channel) Ask(ctx context.Context, q core.Question) (core.Answer, error) {
	reply := make(chan core.Answer, 1)

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return core.Answer{}, ErrClosed
	default:
	}
	c.pending[q.Key().Seq] = pendingQuestion{question: q, reply: reply}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, q.Key().Seq)
		c.mu.Unlock()
	}()

	c.Notify(q)

	select {
	case ans := <-reply:
		return ans, nil
	case <-ctx.Done():
		return core.Answer{}, ctx.Err()
	case <-c.closed:
		return core.Answer{}, ErrClosed
	}
}

// Answer resolves the pending question referenced by ans.ParentKey. It
// reports false and discards ans when no such question is pending, e.g.
// because it was already answered or its asker gave up.
func (c *Channel) Answer(ans core.Answer) bool {
	c.mu.Lock()
	p, ok := c.pending[ans.ParentKey.Seq]
	if ok {
		delete(c.pending, ans.ParentKey.Seq)
	}
	c.mu.Unlock()

	if !ok {
		c.LogWarn("interaction.answer.discarded", "parent_key", ans.ParentKey.String())
		return false
	}

	p.reply <- ans
	return true
}

// Pending returns the questions currently awaiting an answer, oldest first.
func (c *Channel) Pending() []core.Question {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]core.Question, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p.question)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Seq < out[j].Key().Seq })
	return out
}

// Close terminates the event stream and fails outstanding questions.
// It is safe to call more than once.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		close(c.closed)
		c.mu.Unlock()
		c.stream.Close()
	})
}
