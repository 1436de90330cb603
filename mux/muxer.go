// Package mux serializes packets arriving from several independent
// stream encoders into one container. Writes from all streams land in a
// single FIFO queue drained by at most one drain loop at a time; the
// container header is written on the first accepted packet and the
// trailer only once every stream signalled final.
package mux

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/deepch/avmux/av"
	"github.com/deepch/avmux/encode"
)

var Debug bool

var (
	ErrorStreamNotSupported = errors.New("mux: unsupported stream type")
	ErrorDestroyed          = errors.New("mux: muxer destroyed")
)

type writeJob struct {
	idx  int8
	pkt  *av.Packet
	done func(error)
}

func (j writeJob) complete(err error) {
	if j.done != nil {
		j.done(err)
	}
}

// Muxer owns one container writer and one sink per participating stream.
// The full stream layout is fixed at construction; the container itself
// is built lazily, as a side effect of the first accepted write.
type Muxer struct {
	eng    av.Engine
	target string
	format string

	encoders []*encode.Encoder
	sinks    []*Sink
	video    []int
	audio    []int

	mu      sync.Mutex
	queue   []writeJob
	writing bool
	primed  bool
	ended   int
	failed  error
	closed  bool

	container av.Container

	ctx    context.Context
	cancel context.CancelFunc

	ready chan struct{}
	done  chan struct{}
}

// NewMuxer builds one sink per encoder and attaches it as that encoder's
// output. Construction fails if any declared stream type cannot be
// registered with a container.
func NewMuxer(eng av.Engine, target string, encoders ...*encode.Encoder) (*Muxer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Muxer{
		eng:      eng,
		target:   target,
		encoders: encoders,
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	for i, enc := range encoders {
		switch t := enc.Def().Type; t {
		case av.Video:
			m.video = append(m.video, i)
		case av.Audio:
			m.audio = append(m.audio, i)
		default:
			cancel()
			return nil, fmt.Errorf("%w: %v", ErrorStreamNotSupported, t)
		}
		s := &Sink{mux: m, idx: int8(i)}
		m.sinks = append(m.sinks, s)
		enc.SetOutput(s)
	}
	return m, nil
}

// SetFormat overrides the container format name passed to the engine.
func (m *Muxer) SetFormat(name string) {
	m.format = name
}

// Sink returns the write endpoint of stream i.
func (m *Muxer) Sink(i int) *Sink {
	return m.sinks[i]
}

// Ready is closed once the container header has been written.
func (m *Muxer) Ready() <-chan struct{} {
	return m.ready
}

// Done is closed after the trailer is written and the container closed,
// or after a destructive teardown. Err reports which.
func (m *Muxer) Done() <-chan struct{} {
	return m.done
}

func (m *Muxer) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}

// write appends one job to the shared queue. Whichever write finds no
// drain active becomes responsible for starting one; everyone else
// enqueues and returns.
func (m *Muxer) write(j writeJob) error {
	m.mu.Lock()
	if m.failed != nil || m.closed {
		err := m.failed
		m.mu.Unlock()
		if err == nil {
			err = ErrorDestroyed
		}
		j.complete(err)
		return err
	}
	m.queue = append(m.queue, j)
	if m.writing {
		m.mu.Unlock()
		return nil
	}
	m.writing = true
	m.mu.Unlock()
	go m.drain()
	return nil
}

// drain is the single active consumer of the queue. It primes the
// container first if needed, then writes jobs strictly in submission
// order. A failed packet write fails only that job; draining continues.
func (m *Muxer) drain() {
	for {
		m.mu.Lock()
		if m.failed != nil {
			queue := m.queue
			m.queue = nil
			m.writing = false
			err := m.failed
			m.mu.Unlock()
			for _, j := range queue {
				j.complete(err)
			}
			return
		}
		if len(m.queue) == 0 {
			m.writing = false
			final := m.ended == len(m.sinks) && !m.closed
			m.mu.Unlock()
			if final {
				m.finish()
			}
			return
		}
		j := m.queue[0]
		m.queue = m.queue[1:]
		primed := m.primed
		m.mu.Unlock()

		if !primed {
			if err := m.prime(); err != nil {
				if Debug {
					log.Println("mux: prime:", err)
				}
				// fail this job only and keep draining: later jobs
				// retry priming, and the empty-queue pass still runs
				// the finalization check
				j.complete(err)
				continue
			}
			close(m.ready)
		}

		j.pkt.Idx = j.idx
		err := m.container.WritePacket(m.ctx, j.pkt)
		if err != nil && Debug {
			log.Println("mux: write packet:", err)
		}
		j.complete(err)
	}
}

// prime builds the container, registers one stream per encoder in
// original index order, opens the target and writes the header.
func (m *Muxer) prime() error {
	c, err := m.eng.NewContainer(m.target, m.format)
	if err != nil {
		return err
	}
	for i, enc := range m.encoders {
		def := enc.Def()
		switch def.Type {
		case av.Video:
			err = c.AddVideoStream(m.ctx, enc.Codec(), def.FrameRate)
		case av.Audio:
			err = c.AddAudioStream(m.ctx, enc.Codec())
		}
		if err != nil {
			return fmt.Errorf("mux: add stream %d: %w", i, err)
		}
	}
	if err = c.Open(m.ctx); err != nil {
		return err
	}
	if err = c.WriteHeader(m.ctx); err != nil {
		return err
	}
	if err = c.Flush(m.ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.container = c
	m.primed = true
	m.mu.Unlock()
	return nil
}

// final counts one stream down. The trailer is written only when every
// participating stream signalled final and the queue has drained.
func (m *Muxer) final() {
	m.mu.Lock()
	m.ended++
	ready := m.ended == len(m.sinks) && !m.writing && !m.closed && m.failed == nil
	if ready {
		m.writing = true
	}
	m.mu.Unlock()
	if ready {
		go m.drain()
	}
}

// finish writes the trailer, closes the container and signals done.
func (m *Muxer) finish() {
	m.mu.Lock()
	if m.closed || m.failed != nil {
		m.mu.Unlock()
		return
	}
	m.closed = true
	c := m.container
	m.mu.Unlock()

	if c != nil {
		if err := c.WriteTrailer(m.ctx); err != nil && Debug {
			log.Println("mux: write trailer:", err)
		}
		if err := c.Close(m.ctx); err != nil && Debug {
			log.Println("mux: close:", err)
		}
	}
	m.cancel()
	close(m.done)
}

// destroy is the failure cascade: every sibling sink is destroyed with
// the same error, queued jobs fail, and the container is closed without
// a trailer.
func (m *Muxer) destroy(err error) {
	m.mu.Lock()
	if m.closed || m.failed != nil {
		m.mu.Unlock()
		return
	}
	m.failed = err
	m.closed = true
	queue := m.queue
	m.queue = nil
	c := m.container
	m.mu.Unlock()

	for _, s := range m.sinks {
		s.markDestroyed(err)
	}
	for _, j := range queue {
		j.complete(err)
	}
	if c != nil {
		go c.Close(context.Background())
	}
	m.cancel()
	close(m.done)
}
