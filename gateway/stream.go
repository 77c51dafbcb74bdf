package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/koinehq/koine-go/utils"
)

// StreamResult is the aggregate returned by Client.StreamText: a single-pass
// sequence of text fragments plus three independently awaitable values.
//
// The stream is pull-driven. Nothing is read from the network except inside
// Next, so SessionID, Usage and Text only make progress while the caller
// iterates. Awaiting any of them without ever calling Next blocks forever;
// that is the documented consumption contract, not a bug.
//
// Next and Close must be called from a single goroutine. The accessors may be
// awaited from any goroutine, concurrently with iteration.
type StreamResult struct {
	body    io.Reader
	release *onceCloser
	logger  utils.Logger

	dec     sseDecoder
	queued  []Frame
	readBuf []byte
	eof     bool

	accumulated strings.Builder
	finished    bool
	termErr     error

	sessionID *deferred[string]
	usage     *deferred[Usage]
	text      *deferred[string]
}

func newStreamResult(body io.ReadCloser, logger utils.Logger) *StreamResult {
	return &StreamResult{
		body:      body,
		release:   &onceCloser{close: body.Close},
		logger:    logger,
		readBuf:   make([]byte, 4096),
		sessionID: newDeferred[string](),
		usage:     newDeferred[Usage](),
		text:      newDeferred[string](),
	}
}

// Next returns the next text fragment. It returns io.EOF once the stream has
// completed normally, or the terminal error if the stream failed. The same
// terminal outcome is returned on every call after it is reached.
func (s *StreamResult) Next(ctx context.Context) (string, error) {
	if s.finished {
		return "", s.terminal()
	}

	for {
		if err := ctx.Err(); err != nil {
			s.finish(err)
			return "", err
		}

		for len(s.queued) > 0 {
			frame := s.queued[0]
			s.queued = s.queued[1:]

			chunk, yielded, done, err := s.apply(frame)
			if err != nil {
				s.finish(err)
				return "", err
			}
			if yielded {
				return chunk, nil
			}
			if done {
				s.finish(nil)
				return "", io.EOF
			}
		}

		if s.eof {
			s.finish(nil)
			return "", io.EOF
		}

		n, err := s.body.Read(s.readBuf)
		if n > 0 {
			s.queued = append(s.queued, s.dec.Feed(string(s.readBuf[:n]))...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.finish(err)
				return "", err
			}
			s.queued = append(s.queued, s.dec.Flush()...)
			s.eof = true
		}
	}
}

// Close abandons iteration. Any still-pending value is settled exactly as if
// the upstream had been exhausted, and the connection is released. Safe to
// call more than once and after the stream has already terminated.
func (s *StreamResult) Close() error {
	s.finish(nil)
	return s.release.Close()
}

// SessionID resolves once a session event has been observed (or, as a
// fallback, from the result event). It fails with NO_SESSION if the stream
// ends without one.
func (s *StreamResult) SessionID(ctx context.Context) (string, error) {
	return s.sessionID.await(ctx)
}

// Usage resolves from the result event at the end of the stream. It fails
// with NO_USAGE if the stream ends without one.
func (s *StreamResult) Usage(ctx context.Context) (Usage, error) {
	return s.usage.await(ctx)
}

// Text resolves with the full accumulated text when the stream completes. It
// always reaches a terminal state by stream end; it only fails if the gateway
// sent an explicit error event first.
func (s *StreamResult) Text(ctx context.Context) (string, error) {
	return s.text.await(ctx)
}

// apply interprets one frame. Event types split into critical
// (session, result, error, done) whose parse failures abort the stream, and
// non-critical ones whose parse failures are skipped.
func (s *StreamResult) apply(frame Frame) (chunk string, yielded, done bool, err error) {
	switch frame.Event {
	case "session":
		var ev sessionEvent
		if jsonErr := json.Unmarshal([]byte(frame.Data), &ev); jsonErr != nil || ev.SessionID == "" {
			return "", false, false, s.criticalParseFailure(frame.Event)
		}
		s.sessionID.resolve(ev.SessionID)

	case "text":
		var ev textEvent
		if jsonErr := json.Unmarshal([]byte(frame.Data), &ev); jsonErr != nil {
			s.logger.Debug("Skipping malformed text event", "data", frame.Data)
			return "", false, false, nil
		}
		s.accumulated.WriteString(ev.Text)
		return ev.Text, true, false, nil

	case "result":
		var ev resultEvent
		if jsonErr := json.Unmarshal([]byte(frame.Data), &ev); jsonErr != nil || ev.Usage == nil || ev.SessionID == "" {
			return "", false, false, s.criticalParseFailure(frame.Event)
		}
		s.usage.resolve(*ev.Usage)
		// Fallback in case the session event was missed; the slot keeps the
		// first value it saw.
		s.sessionID.resolve(ev.SessionID)

	case "error":
		var ev errorEvent
		if jsonErr := json.Unmarshal([]byte(frame.Data), &ev); jsonErr != nil || ev.Error == "" {
			return "", false, false, s.criticalParseFailure(frame.Event)
		}
		code := ev.Code
		if code == "" {
			code = CodeStreamError
		}
		streamErr := NewError(code, ev.Error, nil)
		s.failPending(streamErr)
		return "", false, false, streamErr

	case "done":
		// Payload is ignored. Normal completion.
		s.text.resolve(s.accumulated.String())
		return "", false, true, nil

	default:
		s.logger.Debug("Ignoring unknown event type", "event", frame.Event)
	}
	return "", false, false, nil
}

func (s *StreamResult) criticalParseFailure(event string) error {
	err := NewError(CodeSSEParseError, "failed to parse critical SSE event: "+event, nil)
	s.failPending(err)
	return err
}

func (s *StreamResult) failPending(err error) {
	s.usage.fail(err)
	s.text.fail(err)
	s.sessionID.fail(err)
}

// finish runs the end-of-stream reconciliation exactly once, whether the
// stream ended normally, failed, or was abandoned: values never delivered are
// failed, the full text resolves with whatever accumulated, and the
// connection is released.
func (s *StreamResult) finish(termErr error) {
	if s.finished {
		return
	}
	s.finished = true
	s.termErr = termErr

	s.sessionID.fail(NewError(CodeNoSession, "stream ended without session ID", nil))
	s.usage.fail(NewError(CodeNoUsage, "stream ended without usage information", nil))
	s.text.resolve(s.accumulated.String())

	if err := s.release.Close(); err != nil {
		s.logger.Warn("Failed to release stream connection", "error", err)
	}
}

func (s *StreamResult) terminal() error {
	if s.termErr != nil {
		return s.termErr
	}
	return io.EOF
}

// onceCloser makes an underlying release operation safe to invoke any number
// of times, per the transport contract.
type onceCloser struct {
	once  sync.Once
	close func() error
	err   error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.close()
	})
	return c.err
}
