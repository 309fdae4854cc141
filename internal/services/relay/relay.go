// Package relay forwards an upstream generation stream to a client sink and
// runs completion side effects once, only when the stream ends naturally.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
)

// State is the lifecycle position of one relayed generation
type State int

const (
	StateIdle State = iota
	StatePromptBuilt
	StateStreaming
	StateFinalizing
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePromptBuilt:
		return "prompt_built"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrGenerationTimeout is reported when the upstream exceeds the relay timeout
var ErrGenerationTimeout = errors.New("generation timed out")

// Sink receives client-visible events in order. Done is called exactly once
// per relayed stream.
type Sink interface {
	Meta(metadata interface{}) error
	Delta(text string, thinking bool) error
	Error(message string) error
	Done() error
}

// FinalizeFunc runs after natural completion with the accumulated answer text.
// The context is detached from client cancellation.
type FinalizeFunc func(ctx context.Context, text string)

// Options tune one Run
type Options struct {
	Meta     interface{} // Sent before the first delta when non-nil
	Finalize FinalizeFunc
}

// Outcome describes how a relayed stream ended
type Outcome struct {
	State  State
	Text   string // Answer text; reasoning excluded
	Deltas int
	Model  string
	Err    error // Mid-stream upstream failure, already reported to the sink
}

// Relay opens generation streams with a bounded lifetime
type Relay struct {
	provider interfaces.StreamProvider
	timeout  time.Duration
	logger   arbor.ILogger
}

// NewRelay creates a relay; timeout <= 0 disables the upstream bound
func NewRelay(provider interfaces.StreamProvider, timeout time.Duration, logger arbor.ILogger) *Relay {
	return &Relay{provider: provider, timeout: timeout, logger: logger}
}

// Session is a generation whose upstream stream is open
type Session struct {
	stream    interfaces.ChunkStream
	streamCtx context.Context
	cancel    context.CancelFunc
	model     string
	state     State
	logger    arbor.ILogger
}

// Open starts the upstream stream. Failures here happen before anything has
// been written to the client, so callers can still answer with a plain error.
func (r *Relay) Open(ctx context.Context, request *interfaces.GenerationRequest) (*Session, error) {
	var (
		streamCtx context.Context
		cancel    context.CancelFunc
	)
	if r.timeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		streamCtx, cancel = context.WithCancel(ctx)
	}

	model := r.provider.ModelFor(request)
	stream, err := r.provider.OpenStream(streamCtx, request)
	if err != nil {
		cancel()
		if errors.Is(streamCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrGenerationTimeout
		}
		return nil, err
	}

	r.logger.Debug().Str("model", model).Msg("Upstream stream opened")

	return &Session{
		stream:    stream,
		streamCtx: streamCtx,
		cancel:    cancel,
		model:     model,
		state:     StatePromptBuilt,
		logger:    r.logger,
	}, nil
}

// Model returns the model serving this session
func (s *Session) Model() string {
	return s.model
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.state
}

// Close releases the upstream connection without relaying
func (s *Session) Close() {
	s.cancel()
	s.stream.Close()
}

// Run forwards every chunk to sink in arrival order. ctx is the caller's
// context: its cancellation aborts the relay without finalizing.
func (s *Session) Run(ctx context.Context, sink Sink, opts Options) Outcome {
	defer s.Close()

	s.state = StateStreaming
	outcome := Outcome{Model: s.model}
	var answer strings.Builder

	abort := func() Outcome {
		s.state = StateAborted
		// The client may already be gone; the sentinel is best effort
		_ = sink.Done()
		outcome.State = s.state
		outcome.Text = answer.String()
		s.logger.Info().Int("deltas", outcome.Deltas).Msg("Generation aborted by client")
		return outcome
	}

	if opts.Meta != nil {
		if err := sink.Meta(opts.Meta); err != nil {
			return abort()
		}
	}

	for {
		if ctx.Err() != nil {
			return abort()
		}

		chunk, err := s.stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return abort()
			}
			if errors.Is(s.streamCtx.Err(), context.DeadlineExceeded) {
				err = ErrGenerationTimeout
			}
			s.logger.Warn().Err(err).Int("deltas", outcome.Deltas).Msg("Upstream stream failed")
			_ = sink.Error(err.Error())
			_ = sink.Done()
			s.state = StateDone
			outcome.State = s.state
			outcome.Text = answer.String()
			outcome.Err = err
			return outcome
		}

		if err := sink.Delta(chunk.Text, chunk.Thinking); err != nil {
			return abort()
		}
		outcome.Deltas++
		if !chunk.Thinking {
			answer.WriteString(chunk.Text)
		}
	}

	if ctx.Err() != nil {
		return abort()
	}

	if err := sink.Done(); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to deliver stream terminator")
	}

	outcome.Text = answer.String()
	if opts.Finalize != nil {
		s.state = StateFinalizing
		opts.Finalize(context.WithoutCancel(ctx), outcome.Text)
	}

	s.state = StateDone
	outcome.State = s.state
	return outcome
}
