package av

import "context"

// Engine is the codec engine boundary. It resolves codec encoders from
// stream definitions and builds container writers from an output target
// and format name. Implementations own the actual codec and container
// serialization work; everything above them only coordinates.
type Engine interface {
	// NewEncoder resolves the encoder for the definition's codec and
	// applies its parameters synchronously. Unsupported codecs fail here.
	NewEncoder(def StreamDef) (CodecEncoder, error)
	// NewContainer builds a container writer for the target. An empty
	// format name selects the engine default.
	NewContainer(target, format string) (Container, error)
}

// CodecEncoder one engine encoder instance. Calls may block at the
// engine's own suspension points; callers serialize their use.
type CodecEncoder interface {
	Def() StreamDef
	Open(ctx context.Context) error
	// Encode turns one raw frame into a packet. An incomplete packet
	// means the codec is buffering, not an error.
	Encode(ctx context.Context, f Frame) (*Packet, error)
	// Finalize drains the codec and returns any trailing packet.
	Finalize(ctx context.Context) (*Packet, error)
	Close() error
}

// Container one container writer. Streams are registered before Open,
// the header written once after, packets in between header and trailer.
type Container interface {
	AddVideoStream(ctx context.Context, enc CodecEncoder, rate Rational) error
	AddAudioStream(ctx context.Context, enc CodecEncoder) error
	Open(ctx context.Context) error
	WriteHeader(ctx context.Context) error
	Flush(ctx context.Context) error
	WritePacket(ctx context.Context, pkt *Packet) error
	WriteTrailer(ctx context.Context) error
	Close(ctx context.Context) error
}

// PacketDest per-stream write endpoint exposed to an encoder's output.
type PacketDest interface {
	// WritePacket accepts one packet. The call returns once the packet is
	// queued; done, when not nil, runs after the container write settles.
	WritePacket(pkt *Packet, done func(error)) error
	// Final signals that the stream's producer ended. Called exactly once.
	Final()
	// Destroy tears the endpoint down. A non-nil error is destructive and
	// cascades; nil is a silent teardown of this one endpoint.
	Destroy(err error)
}
