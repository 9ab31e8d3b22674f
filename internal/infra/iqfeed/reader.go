package iqfeed

import (
	"bytes"
	"io"

	"iqfeed_go/internal/domain"
	"iqfeed_go/internal/infra"
)

const (
	// Delimiter ends every record on the wire.
	Delimiter byte = '\n'

	// DefaultReadBufferSize is the scratch buffer handed to each socket read.
	DefaultReadBufferSize = 2048
)

// Reader splits an unframed byte stream into delimiter-separated frames.
// One Reader owns its source and buffer; it is not safe for concurrent use.
type Reader struct {
	src     io.Reader
	scratch []byte
	buf     []byte // unconsumed bytes, always starts at a frame boundary
	scan    int    // buf[:scan] is known to hold no delimiter
	metrics *infra.Metrics
}

// NewReader creates a Reader with a scratch buffer of size bytes.
// A non-positive size selects DefaultReadBufferSize; nil metrics selects infra.GlobalMetrics.
func NewReader(src io.Reader, size int, metrics *infra.Metrics) *Reader {
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Reader{
		src:     src,
		scratch: make([]byte, size),
		metrics: metrics,
	}
}

// Run reads and forwards frames until the source fails or the sink rejects a frame.
// It always returns a non-nil error: a *domain.NetworkError for transport
// failures (io.EOF included), or the sink's error.
func (r *Reader) Run(sink FrameSink) error {
	for {
		n, err := r.src.Read(r.scratch)
		if n > 0 {
			r.metrics.RecordBytesRead(n)
			r.buf = append(r.buf, r.scratch[:n]...)
			if serr := r.drain(sink); serr != nil {
				return serr
			}
		}
		if err != nil {
			return domain.NewFatalNetworkError("read", err)
		}
	}
}

// drain forwards every complete frame in buf, then compacts the leftover
// partial frame to the front.
func (r *Reader) drain(sink FrameSink) error {
	off := 0
	defer func() { r.compact(off) }()

	for {
		i := bytes.IndexByte(r.buf[off+r.scan:], Delimiter)
		if i < 0 {
			r.scan = len(r.buf) - off
			return nil
		}

		end := off + r.scan + i
		r.scan = 0
		if end == off {
			// empty record
			off++
			continue
		}

		frame := make([]byte, end-off)
		copy(frame, r.buf[off:end])
		off = end + 1

		r.metrics.RecordFrame()
		if err := sink.SendFrame(frame); err != nil {
			return err
		}
	}
}

func (r *Reader) compact(off int) {
	if off == 0 {
		return
	}
	n := copy(r.buf, r.buf[off:])
	r.buf = r.buf[:n]
}

// Buffered returns the number of bytes held back waiting for a delimiter.
func (r *Reader) Buffered() int {
	return len(r.buf)
}
