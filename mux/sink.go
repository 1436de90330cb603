package mux

import "github.com/deepch/avmux/av"

// Sink is the write endpoint of one stream. All sinks of a muxer feed
// the same FIFO queue; the queue order, not the stream of origin,
// decides the order packets reach the container.
type Sink struct {
	mux *Muxer
	idx int8

	ended     bool
	destroyed bool
	err       error
}

// WritePacket accepts one packet for the container. An incomplete packet
// is accepted as a no-op: it represents codec buffering, not data loss.
// The call never blocks on container I/O; done, when not nil, runs after
// this packet's write settles.
func (s *Sink) WritePacket(pkt *av.Packet, done func(error)) error {
	s.mux.mu.Lock()
	if s.destroyed {
		err := s.err
		s.mux.mu.Unlock()
		if err == nil {
			err = ErrorDestroyed
		}
		if done != nil {
			done(err)
		}
		return err
	}
	s.mux.mu.Unlock()

	if !pkt.Complete() {
		if done != nil {
			done(nil)
		}
		return nil
	}
	return s.mux.write(writeJob{idx: s.idx, pkt: pkt, done: done})
}

// Final signals that this stream's producer ended. The container trailer
// is written once every sink signalled final; until then this is only a
// count increment.
func (s *Sink) Final() {
	s.mux.mu.Lock()
	if s.ended || s.destroyed {
		s.mux.mu.Unlock()
		return
	}
	s.ended = true
	s.mux.mu.Unlock()
	s.mux.final()
}

// Destroy tears the sink down. A non-nil error is destructive: every
// sibling sink is destroyed with the same error and the container is
// closed without a trailer. A nil error silently ends this sink only.
func (s *Sink) Destroy(err error) {
	s.mux.mu.Lock()
	if s.destroyed {
		s.mux.mu.Unlock()
		return
	}
	s.destroyed = true
	s.err = err
	s.mux.mu.Unlock()
	if err != nil {
		s.mux.destroy(err)
	}
}

func (s *Sink) markDestroyed(err error) {
	s.mux.mu.Lock()
	if !s.destroyed {
		s.destroyed = true
		s.err = err
	}
	s.mux.mu.Unlock()
}
