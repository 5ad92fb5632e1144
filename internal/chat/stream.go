package chat

import (
	"iter"
	"strings"
)

// Stream is a finite, non-restartable sequence of generated text fragments.
// Use it like a scanner:
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Fragments without text are skipped. Close releases the underlying request
// and may be called at any time, more than once.
type Stream struct {
	next func() (string, error, bool)
	stop func()

	pending    string
	hasPending bool

	text   string
	err    error
	done   bool
	closed bool
}

// NewStream wraps a fragment sequence. Nothing is pulled until Next.
func NewStream(seq iter.Seq2[string, error]) *Stream {
	next, stop := iter.Pull2(seq)
	return &Stream{next: next, stop: stop}
}

// prime pulls up to the first non-empty fragment so that a failure to open
// the stream is reported before the caller starts consuming it.
func (s *Stream) prime() error {
	for {
		text, err, ok := s.next()
		if !ok {
			s.finish()
			return nil
		}
		if err != nil {
			s.finish()
			return err
		}
		if text != "" {
			s.pending, s.hasPending = text, true
			return nil
		}
	}
}

// Next advances to the next fragment. It returns false at the end of the
// stream or on error; check Err afterwards.
func (s *Stream) Next() bool {
	if s.hasPending {
		s.text, s.pending, s.hasPending = s.pending, "", false
		return true
	}
	if s.done {
		return false
	}
	for {
		text, err, ok := s.next()
		if !ok {
			s.finish()
			return false
		}
		if err != nil {
			s.err = err
			s.finish()
			return false
		}
		if text != "" {
			s.text = text
			return true
		}
	}
}

// Text returns the current fragment.
func (s *Stream) Text() string {
	return s.text
}

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close stops the stream.
func (s *Stream) Close() {
	s.hasPending = false
	s.finish()
}

// ReadAll consumes the rest of the stream and returns the concatenated text.
func (s *Stream) ReadAll() (string, error) {
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Text())
	}
	return b.String(), s.Err()
}

func (s *Stream) finish() {
	s.done = true
	if !s.closed {
		s.closed = true
		s.stop()
	}
}

// StreamOf returns a Stream over fixed fragments. It is mainly useful for
// callers that want to treat a complete text as a single-fragment stream.
func StreamOf(fragments ...string) *Stream {
	return NewStream(func(yield func(string, error) bool) {
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
	})
}
