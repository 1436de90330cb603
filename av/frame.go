package av

// Frame is a raw media frame ready for encoding. The set of frame kinds
// is closed: only VideoFrame and AudioFrame implement it.
type Frame interface {
	Complete() bool
	frame()
}

// VideoFrame one raw picture. Data holds one plane per entry in the
// layout of the pixel format.
type VideoFrame struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
	Data        [][]byte
	Pts         int64
	TimeBase    Rational
	PictType    PictureType
	Incomplete  bool
}

func (f *VideoFrame) Complete() bool {
	return !f.Incomplete && len(f.Data) > 0
}

func (f *VideoFrame) frame() {}

// AudioFrame a run of raw samples. Data holds one plane per channel for
// planar formats, a single interleaved plane otherwise.
type AudioFrame struct {
	SampleRate    int
	SampleFormat  SampleFormat
	ChannelLayout ChannelLayout
	Samples       int
	Data          [][]byte
	Pts           int64
	TimeBase      Rational
	Incomplete    bool
}

func (f *AudioFrame) Complete() bool {
	return !f.Incomplete && len(f.Data) > 0
}

func (f *AudioFrame) frame() {}

// Packet one encoded unit destined for the container. An empty packet is
// a valid result of an encode call: the codec is still buffering.
type Packet struct {
	Idx        int8
	IsKeyFrame bool
	Pts        int64
	Dts        int64
	TimeBase   Rational
	Data       []byte
}

// Complete reports whether the packet carries encoded data. Incomplete
// packets represent codec buffering and are silently skipped by sinks.
func (p *Packet) Complete() bool {
	return p != nil && len(p.Data) > 0
}
