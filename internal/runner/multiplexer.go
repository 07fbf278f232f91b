// Package runner executes child processes and streams their output as
// ordered, line-oriented chunks to a consumer callback.
package runner

import (
	"bytes"
	"errors"
	"io"
)

// LineSink receives one complete output line at a time, in arrival order.
// The line does not include the trailing newline. The slice is only valid
// for the duration of the call.
type LineSink func(line []byte)

// chunk carries one read from a single stream to the coordinating loop.
type chunk struct {
	stream int
	data   []byte
	err    error
}

// Multiplexer merges the line-oriented output of multiple byte streams.
// Each stream gets its own partial-line buffer; complete lines are handed
// to the sink in the order the streams produce data. When a stream hits
// EOF, a non-empty residual buffer is flushed as a final line.
type Multiplexer struct {
	sink LineSink
}

// NewMultiplexer creates a multiplexer delivering lines to sink.
func NewMultiplexer(sink LineSink) *Multiplexer {
	return &Multiplexer{sink: sink}
}

// Drain reads every stream to EOF, emitting complete lines as they become
// available. One reader goroutine per stream feeds a shared channel, so
// the loop services whichever stream has data ready and never blocks on
// an idle stream while another is producing. Returns the first read error
// other than io.EOF.
func (m *Multiplexer) Drain(streams ...io.Reader) error {
	ch := make(chan chunk, len(streams))
	for i, s := range streams {
		go readStream(i, s, ch)
	}

	buffers := make([][]byte, len(streams))
	open := len(streams)
	var firstErr error

	for open > 0 {
		c := <-ch
		if len(c.data) > 0 {
			buffers[c.stream] = m.submit(append(buffers[c.stream], c.data...))
		}
		if c.err != nil {
			if !errors.Is(c.err, io.EOF) && firstErr == nil {
				firstErr = c.err
			}
			// Forced flush of a trailing partial line; empty residual is a no-op.
			if rest := buffers[c.stream]; len(rest) > 0 {
				m.sink(rest)
				buffers[c.stream] = nil
			}
			open--
		}
	}
	return firstErr
}

// submit emits every complete line in buf to the sink, one callback per
// line carrying only that line's bytes, and returns the unterminated tail.
func (m *Multiplexer) submit(buf []byte) []byte {
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			return buf
		}
		m.sink(buf[:i])
		buf = buf[i+1:]
	}
}

// readStream pumps raw reads from one stream into the shared channel until
// EOF or error. The final chunk carries the terminating error.
func readStream(idx int, r io.Reader, ch chan<- chunk) {
	for {
		buf := make([]byte, 4096)
		n, err := r.Read(buf)
		if n > 0 || err != nil {
			ch <- chunk{stream: idx, data: buf[:n], err: err}
		}
		if err != nil {
			return
		}
	}
}
