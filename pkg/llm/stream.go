// stream.go defines the lazy text stream returned by AskStream

package llm

import (
	"context"
	"iter"
	"strings"
	"sync/atomic"
)

// StreamSource pushes text fragments to yield until the vendor stream ends
// or yield returns false
type StreamSource func(ctx context.Context, yield func(fragment string) bool) error

// StreamCompletion runs once after the source closed normally with the full text
type StreamCompletion func(ctx context.Context, text string) error

// TextStream is a lazy, single-pass sequence of text fragments. Nothing is
// sent to the vendor until Chunks is ranged over, and ranging a second time
// yields nothing and sets Err to ErrStreamConsumed.
//
//	stream := client.AskStream(ctx, llm.AskRequest{Prompt: "Tell me a story"})
//	for chunk := range stream.Chunks() {
//	    fmt.Print(chunk)
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
type TextStream struct {
	ctx        context.Context
	source     StreamSource
	onComplete StreamCompletion

	consumed atomic.Bool
	text     strings.Builder
	err      error
}

// NewTextStream wraps a vendor source. onComplete may be nil.
func NewTextStream(ctx context.Context, source StreamSource, onComplete StreamCompletion) *TextStream {
	return &TextStream{ctx: ctx, source: source, onComplete: onComplete}
}

// NewFailedStream returns a stream that yields nothing and reports err
func NewFailedStream(err error) *TextStream {
	s := &TextStream{err: err}
	s.consumed.Store(true)
	return s
}

// Chunks returns the fragment sequence
func (s *TextStream) Chunks() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			if s.err == nil {
				s.err = ErrStreamConsumed
			}
			return
		}

		stopped := false
		err := s.source(s.ctx, func(fragment string) bool {
			if fragment == "" {
				return true
			}
			s.text.WriteString(fragment)
			if !yield(fragment) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil {
			s.err = err
			return
		}
		if stopped || s.onComplete == nil {
			return
		}
		s.err = s.onComplete(s.ctx, s.text.String())
	}
}

// Collect drains the stream and returns the full text
func (s *TextStream) Collect() (string, error) {
	for range s.Chunks() {
	}
	return s.Text(), s.Err()
}

// Text returns the text accumulated so far
func (s *TextStream) Text() string {
	return s.text.String()
}

// Err returns the error that ended the stream, if any
func (s *TextStream) Err() error {
	return s.err
}
