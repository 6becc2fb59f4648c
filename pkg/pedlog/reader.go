package pedlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pedlog/pedlog-go/internal/buffer"
	"github.com/pedlog/pedlog-go/internal/parser"
	"github.com/pedlog/pedlog-go/internal/tailer"
	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
	"github.com/pedlog/pedlog-go/pkg/pedlog/rules"
)

// State is the lifecycle state of a Reader.
type State int

const (
	// StateIdle is the state of a new reader, and of a reader whose Start
	// failed.
	StateIdle State = iota
	// StateRunning means the log file is being followed.
	StateRunning
	// StateStopped is terminal. It is entered by Stop, when the log file
	// ends, or on a fatal read error.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Locator supplies the path of the chat log to follow.
type Locator interface {
	Location() (string, error)
}

// StaticLocation is a Locator that always returns the same path.
type StaticLocation string

// Location implements Locator.
func (s StaticLocation) Location() (string, error) {
	return string(s), nil
}

// Stats are counters describing what the reader has processed.
type Stats struct {
	Lines        uint64 // lines read from the log
	Events       uint64 // events added to the buffer
	Ignored      uint64 // lines that were not chat lines or from other channels
	Unmatched    uint64 // lines no rule matched
	Malformed    uint64 // lines a rule matched but whose captures were invalid
	Filtered     uint64 // events dropped by WithIncludeKinds
	DecodeErrors uint64 // lines skipped because they were not valid UTF-8
	Evicted      uint64 // events dropped on buffer overflow
}

type counters struct {
	lines, events, ignored, unmatched   atomic.Uint64
	malformed, filtered, decode, evicted atomic.Uint64
}

// WarnRateLimit is the maximum number of per-line warnings logged per second.
// Counters in Stats are kept regardless.
const WarnRateLimit = 10

// discardLogger returns a logger that discards all output.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Reader follows a chat log and buffers the events classified from new lines.
// Consumers poll NextEvent; it never blocks.
//
// A Reader is started once. After it stops, whether through Stop, the end of
// the log or a fatal error, create a new Reader to follow the log again.
type Reader struct {
	id         string
	cfg        readerConfig // immutable after creation
	locator    Locator
	log        *slog.Logger
	classifier *rules.Classifier
	buf        *buffer.Buffer[event.Event]
	stats      counters
	warnLimit  *rate.Limiter

	mu     sync.Mutex
	state  State
	path   string
	err    error              // fatal cause, set when the loop exits on error
	cancel context.CancelFunc // stops the loop
	doneCh chan struct{}      // closed when the loop has exited
}

// NewReader creates a reader that follows the file named by locator.
// It validates the options and loads rule files but does not touch the log
// file or start goroutines; see Start.
//
// A nil locator is allowed; Start then reports ErrNoLocation.
func NewReader(locator Locator, opts ...ReaderOption) (*Reader, error) {
	cfg := applyReaderOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	classifier, err := cfg.classifier()
	if err != nil {
		return nil, err
	}

	log := cfg.logger
	if log == nil {
		log = discardLogger
	}
	id := uuid.NewString()

	return &Reader{
		id:         id,
		cfg:        *cfg,
		locator:    locator,
		log:        log.With("reader", id),
		classifier: classifier,
		buf:        buffer.New[event.Event](cfg.capacity),
		warnLimit:  rate.NewLimiter(WarnRateLimit, WarnRateLimit),
	}, nil
}

// Start opens the log file and starts following it in a background
// goroutine.
//
// Calling Start on a running reader does nothing. Start returns
// ErrNoLocation if the locator yields an empty path and a *ReaderError if the
// file cannot be opened; the reader stays idle in both cases. After the
// reader has stopped, Start returns ErrReaderClosed.
func (r *Reader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateRunning:
		return nil
	case StateStopped:
		return ErrReaderClosed
	}

	path, err := r.location()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	tl, err := tailer.New(ctx, path, tailer.Config{
		FromStart:    r.cfg.fromStart,
		PollInterval: r.cfg.pollInterval,
		ReOpen:       r.cfg.reOpen,
	})
	if err != nil {
		cancel()
		r.log.Warn("cannot open chat log", "path", path, "error", err)
		return &ReaderError{Op: ReaderOpOpen, Path: path, Err: err}
	}

	r.path = path
	r.cancel = cancel
	r.doneCh = make(chan struct{})
	r.state = StateRunning
	r.log.Debug("started reading chat log", "path", path, "from_start", r.cfg.fromStart)

	go r.run(ctx, tl)
	return nil
}

func (r *Reader) location() (string, error) {
	if r.locator == nil {
		return "", ErrNoLocation
	}
	path, err := r.locator.Location()
	if err != nil {
		return "", &ReaderError{Op: ReaderOpLocate, Err: err}
	}
	if path == "" {
		return "", ErrNoLocation
	}
	return path, nil
}

// Stop stops the reader, releases the log file and discards buffered
// events. It blocks until the background goroutine has exited.
// Safe to call multiple times and on a reader that was never started.
func (r *Reader) Stop() error {
	r.mu.Lock()
	r.state = StateStopped
	cancel := r.cancel
	doneCh := r.doneCh
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-doneCh
	}
	r.buf.Clear()
	return nil
}

// NextEvent removes and returns the oldest buffered event.
// It reports false when no event is available and never blocks.
func (r *Reader) NextEvent() (event.Event, bool) {
	return r.buf.Pop()
}

// Pending returns the number of buffered events.
func (r *Reader) Pending() int {
	return r.buf.Len()
}

// ID returns the random identifier attached to the reader's log records.
func (r *Reader) ID() string {
	return r.id
}

// State returns the current lifecycle state.
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Path returns the path of the followed file, or "" before a successful
// Start.
func (r *Reader) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Err returns the error that stopped the reader, or nil if it is running, was
// stopped with Stop, or reached the end of the log.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done returns a channel that is closed when the background goroutine has
// exited. It is nil before a successful Start.
func (r *Reader) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doneCh
}

// Stats returns a snapshot of the reader's counters.
func (r *Reader) Stats() Stats {
	return Stats{
		Lines:        r.stats.lines.Load(),
		Events:       r.stats.events.Load(),
		Ignored:      r.stats.ignored.Load(),
		Unmatched:    r.stats.unmatched.Load(),
		Malformed:    r.stats.malformed.Load(),
		Filtered:     r.stats.filtered.Load(),
		DecodeErrors: r.stats.decode.Load(),
		Evicted:      r.stats.evicted.Load(),
	}
}

func (r *Reader) run(ctx context.Context, tl *tailer.Tailer) {
	defer close(r.doneCh)
	defer r.cleanup(tl)
	defer func() {
		if p := recover(); p != nil {
			r.fail(fmt.Errorf("reader loop panic: %v", p))
		}
	}()

	errs := tl.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-tl.Lines():
			if !ok {
				// The follower closes errs before lines; count what is left.
				if errs != nil {
					for err := range errs {
						r.decodeError(err)
					}
				}
				if err := tl.Err(); err != nil {
					r.fail(err)
				} else {
					r.log.Debug("chat log ended", "path", r.path)
				}
				return
			}
			r.processLine(line)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.decodeError(err)
		}
	}
}

func (r *Reader) decodeError(err error) {
	r.stats.decode.Add(1)
	r.warn("skipping unreadable line", "error", err)
}

// fail records a fatal loop error.
func (r *Reader) fail(err error) {
	r.mu.Lock()
	path := r.path
	r.err = &ReaderError{Op: ReaderOpRead, Path: path, Err: err}
	r.mu.Unlock()
	r.log.Error("stopped reading chat log", "path", path, "error", err)
}

// cleanup releases the follower and marks the reader stopped. Every loop
// exit goes through it.
func (r *Reader) cleanup(tl *tailer.Tailer) {
	if err := tl.Stop(); err != nil {
		r.log.Debug("stopping follower", "error", err)
	}
	r.mu.Lock()
	r.state = StateStopped
	r.mu.Unlock()
}

// warn logs a per-line problem. A corrupt or flooded log can produce one per
// line, so output is rate limited.
func (r *Reader) warn(msg string, args ...any) {
	if !r.warnLimit.Allow() {
		return
	}
	r.log.Warn(msg, args...)
}

func (r *Reader) processLine(raw string) {
	r.stats.lines.Add(1)

	line := parser.Parse(raw)
	res, err := r.classifier.Classify(line)
	if err != nil {
		r.stats.malformed.Add(1)
		r.warn("dropping malformed line", "rule", res.RuleID, "error", err)
		return
	}

	switch res.Outcome {
	case rules.OutcomeIgnored:
		r.stats.ignored.Add(1)
		return
	case rules.OutcomeUnmatched:
		r.stats.unmatched.Add(1)
		r.log.Debug("no rule matched", "channel", line.Channel, "message", line.Message)
		return
	}

	if !r.cfg.allows(res.Event.Kind()) {
		r.stats.filtered.Add(1)
		return
	}

	r.stats.events.Add(1)
	if evicted := r.buf.Push(res.Event); evicted > 0 {
		r.stats.evicted.Add(uint64(evicted))
		r.warn("event buffer full, dropped oldest events", "dropped", evicted, "capacity", r.buf.Cap())
	}
}
