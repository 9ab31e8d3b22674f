package iqfeed

import (
	"fmt"

	"iqfeed_go/internal/domain"
	"iqfeed_go/internal/queue"
)

// FrameSink receives complete frames in wire order.
// A non-nil error from SendFrame ends the reader loop and is returned by it.
type FrameSink interface {
	SendFrame(frame []byte) error
}

// RawSink forwards frames unchanged. Decoding is left to the consumer.
type RawSink struct {
	Out *queue.Unbounded[[]byte]
}

func (s RawSink) SendFrame(frame []byte) error {
	if err := s.Out.Send(frame); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrChannelClosed, err)
	}
	return nil
}

// DecodingSink decodes each frame inline and forwards the result.
// Decode failures travel downstream as values; only a closed queue is an error here.
type DecodingSink struct {
	Decoder *Decoder
	Out     *queue.Unbounded[domain.Result]
}

func (s DecodingSink) SendFrame(frame []byte) error {
	msg, err := s.Decoder.Decode(frame)
	res := domain.Result{Message: msg, Frame: frame, Err: err}
	if err := s.Out.Send(res); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrChannelClosed, err)
	}
	return nil
}

// SinkFunc adapts a function to FrameSink
type SinkFunc func(frame []byte) error

func (f SinkFunc) SendFrame(frame []byte) error {
	return f(frame)
}
