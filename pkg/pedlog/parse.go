package pedlog

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/pedlog/pedlog-go/internal/parser"
	"github.com/pedlog/pedlog-go/internal/tailer"
	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
	"github.com/pedlog/pedlog-go/pkg/pedlog/rules"
)

// Line is a chat log line split into its fields.
type Line = parser.Line

// ParseLine splits a raw chat log line into timestamp, channel, speaker and
// message. Input that is not a chat line yields the zero Line.
func ParseLine(raw string) Line {
	return parser.Parse(raw)
}

// ClassifyLine parses and classifies a single line with the built-in rules,
// interpreting its timestamp in local time.
//
// Return values:
//   - (event, nil): a rule matched
//   - (nil, nil): the line is not a chat line, comes from another channel,
//     or no rule matched
//   - (nil, error): a rule matched but the line is malformed
//
// Example:
//
//	ev, err := pedlog.ClassifyLine("2024-01-01 12:00:00 [System] [] You healed yourself 12.5 points")
//	if err != nil {
//	    log.Printf("malformed line: %v", err)
//	} else if heal, ok := ev.(*event.Heal); ok {
//	    fmt.Println(heal.Amount)
//	}
func ClassifyLine(raw string) (event.Event, error) {
	res, err := rules.Default().Classify(parser.Parse(raw))
	if err != nil {
		return nil, err
	}
	return res.Event, nil
}

// ParseFile classifies every line of an existing log file from the start,
// without following it. Only the rule and filter options apply.
//
// Malformed and unreadable lines are yielded as errors; iteration continues
// after them unless the caller breaks. An error opening the file is yielded
// once and ends the sequence.
//
// Example:
//
//	for ev, err := range pedlog.ParseFile(ctx, "chat.log") {
//	    if err != nil {
//	        log.Printf("skipping: %v", err)
//	        continue
//	    }
//	    fmt.Println(ev.Kind(), ev.Time())
//	}
func ParseFile(ctx context.Context, path string, opts ...ReaderOption) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		cfg := applyReaderOptions(opts)
		if err := cfg.validate(); err != nil {
			yield(nil, fmt.Errorf("invalid options: %w", err))
			return
		}
		classifier, err := cfg.classifier()
		if err != nil {
			yield(nil, err)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		tl, err := tailer.New(ctx, path, tailer.Config{FromStart: true, Once: true})
		if err != nil {
			yield(nil, &ReaderError{Op: ReaderOpOpen, Path: path, Err: err})
			return
		}
		defer func() { _ = tl.Stop() }()

		errs := tl.Errors()
		for {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case raw, ok := <-tl.Lines():
				if !ok {
					// Report decode errors that were queued behind the last line.
					if errs != nil {
						for err := range errs {
							if !yield(nil, err) {
								return
							}
						}
					}
					if err := tl.Err(); err != nil {
						yield(nil, &ReaderError{Op: ReaderOpRead, Path: path, Err: err})
					}
					return
				}
				res, err := classifier.Classify(parser.Parse(raw))
				if err != nil {
					if !yield(nil, err) {
						return
					}
					continue
				}
				if res.Outcome != rules.OutcomeMatched || !cfg.allows(res.Event.Kind()) {
					continue
				}
				if !yield(res.Event, nil) {
					return
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if !yield(nil, err) {
					return
				}
			}
		}
	}
}

// IsMalformed reports whether err describes a line that matched a rule but
// could not be turned into an event.
func IsMalformed(err error) bool {
	var be *rules.BuildError
	return errors.As(err, &be)
}
