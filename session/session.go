package session

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/cmdmesh/agent"
	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/thread"
)

// Session is one execution context. Submit serializes turns; Close is
// idempotent and may be called from any goroutine.
type Session struct {
	core.LoggerAdapter

	manager *Manager
	agents  *agent.Set
	id      string
	kind    command.SessionKind
	th      *thread.Thread

	life   context.Context
	cancel context.CancelFunc

	// turnMu guards cc and admits one queue drain at a time.
	turnMu sync.Mutex
	cc     *command.Context

	closeOnce sync.Once
	closeErr  error
}

func newSession(m *Manager, cc *command.Context, agents *agent.Set) *Session {
	life, cancel := context.WithCancel(context.Background())
	return &Session{
		LoggerAdapter: cc.LoggerAdapter,
		manager:       m,
		agents:        agents,
		id:            cc.SessionID,
		kind:          cc.Kind,
		th:            cc.Thread,
		life:          life,
		cancel:        cancel,
		cc:            cc,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Kind returns how the session was started.
func (s *Session) Kind() command.SessionKind { return s.kind }

// Thread returns the session's conversation.
func (s *Session) Thread() *thread.Thread { return s.th }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.life.Done() }

// Submit runs one user turn: line and every command it expands into. It
// blocks while another turn of this session is running. Command failures
// are reported as error events; the returned error is only set when the
// turn was cancelled or the session is closed.
func (s *Session) Submit(ctx context.Context, line string) error {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	if err := s.life.Err(); err != nil {
		return core.Errorf(core.ErrCodeStreamAborted, "session %s is closed", s.id)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.life, cancel)
	defer stop()

	cc, err := s.manager.processor.Process(ctx, s.cc, line)
	s.cc = cc

	return err
}

// Values returns a copy of the session variables set by handlers.
func (s *Session) Values() map[string]string {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	out := make(map[string]string, len(s.cc.Values))
	for k, v := range s.cc.Values {
		out[k] = v
	}
	return out
}

// Close cancels a running turn, waits for it, and releases the session's
// agents and tool factories.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		s.turnMu.Lock()
		defer s.turnMu.Unlock()

		var result *multierror.Error
		if err := s.agents.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		if c, ok := s.cc.Interaction.(interface{ Close() }); ok {
			c.Close()
		}
		s.closeErr = result.ErrorOrNil()

		s.manager.remove(s)
	})
	return s.closeErr
}
