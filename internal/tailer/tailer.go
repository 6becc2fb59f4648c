// Package tailer follows a growing chat log file and yields complete,
// decoded lines as they are appended.
package tailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nxadm/tail"
	"github.com/nxadm/tail/watch"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/pedlog/pedlog-go/internal/safefile"
)

// DefaultPollInterval is how often the file is checked for new data.
const DefaultPollInterval = 10 * time.Millisecond

// errBuffer is the buffer size for the error channel.
const errBuffer = 16

// Config configures a Tailer.
type Config struct {
	// FromStart reads the existing content before following.
	// When false, only lines appended after New returns are yielded.
	FromStart bool

	// PollInterval enables polling at the given interval. Zero uses
	// file system notifications instead.
	//
	// The polling interval is process-wide in the underlying library;
	// the first Tailer created with polling sets it.
	PollInterval time.Duration

	// ReOpen follows the path when the file is rotated (moved or deleted
	// and recreated). Truncated files are always reopened.
	ReOpen bool

	// MaxLineSize splits longer lines. Zero means unlimited.
	MaxLineSize int

	// Once reads up to the current end of the file and then ends, instead
	// of following. A trailing line without a newline is included.
	Once bool
}

// DefaultConfig returns the configuration used for chat logs: poll every
// 10ms from the current end of the file and reopen on rotation.
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		ReOpen:       true,
	}
}

// DecodeError is reported for a line that is not valid UTF-8.
// The line is skipped.
type DecodeError struct {
	Path string
	Line int // 1-based line number as counted by the follower
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: line %d: invalid UTF-8", e.Path, e.Line)
}

var pollOnce sync.Once

func setPollInterval(d time.Duration) {
	pollOnce.Do(func() {
		watch.POLL_DURATION = d
	})
}

// Tailer follows one file. Create it with New and release it with Stop.
type Tailer struct {
	path   string
	cfg    Config
	t      *tail.Tail
	lines  chan string
	errs   chan error
	cancel context.CancelFunc
	done   chan struct{}

	stopOnce sync.Once
	stopErr  error

	mu  sync.Mutex
	err error // why following ended, nil for a clean stop
}

// New starts following path. The file must exist and be a regular file.
// Lines are delivered on Lines until ctx is cancelled, Stop is called, or
// the file can no longer be followed.
func New(ctx context.Context, path string, cfg Config) (*Tailer, error) {
	info, err := safefile.Check(path)
	if err != nil {
		return nil, err
	}

	// Start at the size observed now rather than seeking to the end when
	// the follower goroutine gets to it, so that lines written right after
	// New returns are not skipped.
	var loc *tail.SeekInfo
	if !cfg.FromStart {
		loc = &tail.SeekInfo{Offset: info.Size(), Whence: io.SeekStart}
	}

	if cfg.PollInterval > 0 && !cfg.Once {
		setPollInterval(cfg.PollInterval)
	}

	t, err := tail.TailFile(path, tail.Config{
		Location:      loc,
		ReOpen:        cfg.ReOpen && !cfg.Once,
		MustExist:     true,
		Poll:          cfg.PollInterval > 0,
		Follow:        !cfg.Once,
		MaxLineSize:   cfg.MaxLineSize,
		CompleteLines: true,
		Logger:        tail.DiscardingLogger,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	tl := &Tailer{
		path:   path,
		cfg:    cfg,
		t:      t,
		lines:  make(chan string),
		errs:   make(chan error, errBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go tl.run(ctx)
	return tl, nil
}

// Lines returns the channel of decoded lines, without line terminators.
// It is closed when following ends.
func (tl *Tailer) Lines() <-chan string { return tl.lines }

// Errors returns non-fatal errors such as *DecodeError. It is closed when
// following ends. Errors are dropped if the buffer is full.
func (tl *Tailer) Errors() <-chan error { return tl.errs }

// Done is closed once following has ended and both channels are closed.
func (tl *Tailer) Done() <-chan struct{} { return tl.done }

// Err returns the reason following ended, or nil if it was stopped or the
// file went away without ReOpen. It is only meaningful after Done.
func (tl *Tailer) Err() error {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.err
}

// Stop stops following and releases the file. Safe to call multiple times
// and from multiple goroutines.
func (tl *Tailer) Stop() error {
	tl.stopOnce.Do(func() {
		tl.cancel()
		tl.stopErr = tl.t.Stop()
		if tl.cfg.PollInterval <= 0 && !tl.cfg.Once {
			tl.t.Cleanup()
		}
		<-tl.done
	})
	return tl.stopErr
}

func (tl *Tailer) run(ctx context.Context) {
	defer close(tl.done)
	defer close(tl.lines)
	defer close(tl.errs)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-tl.t.Lines:
			if !ok {
				err := tl.t.Wait()
				tl.mu.Lock()
				tl.err = err
				tl.mu.Unlock()
				return
			}
			if line.Err != nil {
				// Rate limiting notices; the line text is a message, not data.
				tl.sendError(ctx, line.Err)
				continue
			}
			text, err := decode(line.Text)
			if err != nil {
				tl.sendError(ctx, &DecodeError{Path: tl.path, Line: line.Num})
				continue
			}
			select {
			case tl.lines <- text:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (tl *Tailer) sendError(ctx context.Context, err error) {
	select {
	case tl.errs <- err:
	case <-ctx.Done():
	default:
	}
}

var errInvalidUTF8 = errors.New("invalid UTF-8")

// decode validates a raw line, drops a trailing CR and strips a leading byte
// order mark, which the game client writes at the start of a new log.
func decode(raw string) (string, error) {
	raw = strings.TrimSuffix(raw, "\r")
	if !utf8.ValidString(raw) {
		return "", errInvalidUTF8
	}
	text, _, err := transform.String(unicode.UTF8BOM.NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return text, nil
}
