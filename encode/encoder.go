// Package encode wraps one codec engine encoder instance and turns a
// sequence of raw frames into a sequence of encoded packets. One encoder
// never processes two frames at a time: a second call while one is in
// flight fails with ErrorBusy instead of queueing.
package encode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/deepch/avmux/av"
)

var (
	ErrorBusy          = errors.New("encoder is busy")
	ErrorNotPrimed     = errors.New("encoder is not primed")
	ErrorIncomplete    = errors.New("received incomplete frame")
	ErrorNotVideoFrame = errors.New("input is not a raw video frame")
	ErrorNotAudioFrame = errors.New("input is not a raw audio frame")
	ErrorClosed        = errors.New("encoder is closed")
)

// Encoder one stream encoder. Created in the constructed state, primed
// by Open, then fed frames one at a time until Flush.
type Encoder struct {
	def av.StreamDef
	enc av.CodecEncoder
	out av.PacketDest

	mu     sync.Mutex
	busy   bool
	primed bool
	closed bool

	ready chan struct{}
}

// NewEncoder resolves the codec for the definition and applies its
// parameters synchronously. An unsupported codec fails here, before any
// state is retained.
func NewEncoder(eng av.Engine, def av.StreamDef) (*Encoder, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	enc, err := eng.NewEncoder(def)
	if err != nil {
		return nil, fmt.Errorf("encode: resolve %v: %w", def.Codec, err)
	}
	return &Encoder{
		def:   def,
		enc:   enc,
		ready: make(chan struct{}),
	}, nil
}

func (e *Encoder) Def() av.StreamDef {
	return e.def
}

// Codec exposes the engine encoder so the container can read its
// configuration at priming time.
func (e *Encoder) Codec() av.CodecEncoder {
	return e.enc
}

// SetOutput attaches the sink every produced packet is forwarded to.
func (e *Encoder) SetOutput(dst av.PacketDest) {
	e.out = dst
}

// Ready is closed once priming succeeded and frames may be submitted.
func (e *Encoder) Ready() <-chan struct{} {
	return e.ready
}

// Open primes the encoder: the engine opens the codec. The encoder is
// busy for the duration; on failure it stays unusable.
func (e *Encoder) Open(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrorClosed
	}
	if e.primed || e.busy {
		e.mu.Unlock()
		return ErrorBusy
	}
	e.busy = true
	e.mu.Unlock()

	err := e.enc.Open(ctx)

	e.mu.Lock()
	e.busy = false
	if err != nil {
		e.closed = true
		e.mu.Unlock()
		return err
	}
	e.primed = true
	e.mu.Unlock()
	close(e.ready)
	return nil
}

// Encode submits one raw frame. The returned packet may be incomplete
// when the codec is still buffering; complete packets are also forwarded
// to the attached output.
func (e *Encoder) Encode(ctx context.Context, f av.Frame) (*av.Packet, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrorClosed
	}
	if !e.primed {
		e.mu.Unlock()
		return nil, ErrorNotPrimed
	}
	if err := e.checkFrame(f); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if e.busy {
		e.mu.Unlock()
		return nil, ErrorBusy
	}
	e.busy = true
	e.mu.Unlock()

	e.stamp(f)
	pkt, err := e.enc.Encode(ctx, f)

	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err = e.forward(pkt); err != nil {
		return pkt, err
	}
	return pkt, nil
}

// Flush signals end of input: the engine finalizes, any trailing packet
// is forwarded, the output is signalled final and the engine encoder is
// released. The encoder is terminal afterwards. A finalize failure still
// releases the engine encoder and destroys the output with the error.
func (e *Encoder) Flush(ctx context.Context) (*av.Packet, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrorClosed
	}
	if !e.primed {
		e.mu.Unlock()
		return nil, ErrorNotPrimed
	}
	if e.busy {
		e.mu.Unlock()
		return nil, ErrorBusy
	}
	e.busy = true
	e.mu.Unlock()

	pkt, err := e.enc.Finalize(ctx)

	e.mu.Lock()
	e.busy = false
	e.closed = true
	e.mu.Unlock()

	if err != nil {
		e.enc.Close()
		if e.out != nil {
			e.out.Destroy(err)
		}
		return nil, err
	}
	ferr := e.forward(pkt)
	if e.out != nil {
		e.out.Final()
	}
	if cerr := e.enc.Close(); cerr != nil {
		return pkt, cerr
	}
	return pkt, ferr
}

func (e *Encoder) checkFrame(f av.Frame) error {
	switch e.def.Type {
	case av.Video:
		if _, ok := f.(*av.VideoFrame); !ok {
			return ErrorNotVideoFrame
		}
	case av.Audio:
		if _, ok := f.(*av.AudioFrame); !ok {
			return ErrorNotAudioFrame
		}
	}
	if f == nil || !f.Complete() {
		return ErrorIncomplete
	}
	return nil
}

// stamp clears any forced picture type and applies the encoder's
// configured time base to the frame.
func (e *Encoder) stamp(f av.Frame) {
	tb := e.def.TimeBase
	switch v := f.(type) {
	case *av.VideoFrame:
		v.PictType = av.PictureNone
		if tb.IsZero() {
			tb = av.Rational{Num: e.def.FrameRate.Den, Den: e.def.FrameRate.Num}
		}
		v.TimeBase = tb
	case *av.AudioFrame:
		if tb.IsZero() {
			tb = av.Rational{Num: 1, Den: e.def.SampleRate}
		}
		v.TimeBase = tb
	}
}

func (e *Encoder) forward(pkt *av.Packet) error {
	if e.out == nil || !pkt.Complete() {
		return nil
	}
	return e.out.WritePacket(pkt, nil)
}
