// Package av defines basic interfaces and data structures of stream
// multiplexing: stream definitions, raw frames, encoded packets and the
// codec engine boundary.
package av

import (
	"fmt"
	"time"
)

// StreamType declared type of one logical stream inside a container.
type StreamType uint8

const (
	Audio StreamType = iota + 1
	Video
	Subtitle
	Data
)

func (t StreamType) String() string {
	switch t {
	case Audio:
		return "audio"
	case Video:
		return "video"
	case Subtitle:
		return "subtitle"
	case Data:
		return "data"
	}
	return "invalid"
}

type CodecType uint32

const (
	H264 CodecType = iota + 0x264
	H265
	MJPEG
	RAWVIDEO
	AAC CodecType = iota + 0xa0c
	OPUS
	PCM
	PCM_MULAW
	PCM_ALAW
)

func (t CodecType) IsVideo() bool {
	return t >= H264 && t <= RAWVIDEO
}

func (t CodecType) IsAudio() bool {
	return t >= AAC && t <= PCM_ALAW
}

func (t CodecType) String() string {
	switch t {
	case H264:
		return "H264"
	case H265:
		return "H265"
	case MJPEG:
		return "MJPEG"
	case RAWVIDEO:
		return "RAWVIDEO"
	case AAC:
		return "AAC"
	case OPUS:
		return "OPUS"
	case PCM:
		return "PCM"
	case PCM_MULAW:
		return "PCM_MULAW"
	case PCM_ALAW:
		return "PCM_ALAW"
	}
	return fmt.Sprintf("CodecType(%d)", uint32(t))
}

type PixelFormat uint8

const (
	I420 PixelFormat = iota + 1
	NV12
	YUYV
	RGBA
)

type SampleFormat uint8

const (
	U8 SampleFormat = iota + 1
	S16
	S32
	FLT
)

// BytesPerSample size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case U8:
		return 1
	case S16:
		return 2
	case S32, FLT:
		return 4
	}
	return 0
}

type ChannelLayout uint16

const (
	CH_MONO   ChannelLayout = 1
	CH_STEREO ChannelLayout = 2
)

func (l ChannelLayout) Count() int {
	return int(l)
}

type PictureType uint8

const (
	PictureNone PictureType = iota
	PictureI
	PictureP
	PictureB
)

// Rational time base or frame rate as an exact fraction.
type Rational struct {
	Num int
	Den int
}

func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Duration converts n units of the time base into a duration.
func (r Rational) Duration(n int64) time.Duration {
	if r.IsZero() {
		return 0
	}
	return time.Duration(n) * time.Second * time.Duration(r.Num) / time.Duration(r.Den)
}

// StreamDef static parameters of one logical stream. The type tag decides
// which of the optional field groups is meaningful; a definition carries
// exactly the fields of its declared type. Immutable after construction.
type StreamDef struct {
	Type     StreamType
	Codec    CodecType
	BitRate  int
	TimeBase Rational

	// video only
	Width, Height int
	FrameRate     Rational
	PixelFormat   PixelFormat

	// audio only
	ChannelLayout ChannelLayout
	SampleFormat  SampleFormat
	SampleRate    int
}

func VideoDef(codec CodecType, bitRate, width, height int, rate Rational, pixFmt PixelFormat) StreamDef {
	return StreamDef{
		Type:        Video,
		Codec:       codec,
		BitRate:     bitRate,
		Width:       width,
		Height:      height,
		FrameRate:   rate,
		PixelFormat: pixFmt,
	}
}

func AudioDef(codec CodecType, bitRate int, layout ChannelLayout, sampleFmt SampleFormat, sampleRate int) StreamDef {
	return StreamDef{
		Type:          Audio,
		Codec:         codec,
		BitRate:       bitRate,
		ChannelLayout: layout,
		SampleFormat:  sampleFmt,
		SampleRate:    sampleRate,
	}
}

// Validate checks that the definition carries exactly the fields of its
// declared type.
func (d StreamDef) Validate() error {
	switch d.Type {
	case Video:
		if d.Width <= 0 || d.Height <= 0 {
			return fmt.Errorf("av: video def %dx%d invalid size", d.Width, d.Height)
		}
		if d.FrameRate.IsZero() {
			return fmt.Errorf("av: video def missing frame rate")
		}
		if d.PixelFormat == 0 {
			return fmt.Errorf("av: video def missing pixel format")
		}
		if d.ChannelLayout != 0 || d.SampleFormat != 0 || d.SampleRate != 0 {
			return fmt.Errorf("av: video def carries audio fields")
		}
	case Audio:
		if d.SampleRate <= 0 {
			return fmt.Errorf("av: audio def missing sample rate")
		}
		if d.ChannelLayout == 0 || d.SampleFormat == 0 {
			return fmt.Errorf("av: audio def missing sample layout")
		}
		if d.Width != 0 || d.Height != 0 || !d.FrameRate.IsZero() || d.PixelFormat != 0 {
			return fmt.Errorf("av: audio def carries video fields")
		}
	case Subtitle, Data:
		if d.Width != 0 || d.Height != 0 || d.SampleRate != 0 {
			return fmt.Errorf("av: %s def carries media fields", d.Type)
		}
	default:
		return fmt.Errorf("av: unknown stream type %d", d.Type)
	}
	return nil
}
