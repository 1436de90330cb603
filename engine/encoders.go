package engine

import (
	"context"
	"errors"

	"github.com/deepch/avmux/av"
)

var ErrorNotOpened = errors.New("engine: encoder not opened")

// rawVideoEncoder copies raw picture planes straight into packets. Every
// raw frame is its own key frame.
type rawVideoEncoder struct {
	def    av.StreamDef
	opened bool
}

func (e *rawVideoEncoder) Def() av.StreamDef {
	return e.def
}

func (e *rawVideoEncoder) Open(ctx context.Context) error {
	e.opened = true
	return nil
}

func (e *rawVideoEncoder) Encode(ctx context.Context, f av.Frame) (*av.Packet, error) {
	if !e.opened {
		return nil, ErrorNotOpened
	}
	vf := f.(*av.VideoFrame)
	var data []byte
	for _, plane := range vf.Data {
		data = append(data, plane...)
	}
	return &av.Packet{
		IsKeyFrame: true,
		Pts:        vf.Pts,
		Dts:        vf.Pts,
		TimeBase:   vf.TimeBase,
		Data:       data,
	}, nil
}

func (e *rawVideoEncoder) Finalize(ctx context.Context) (*av.Packet, error) {
	// nothing buffered
	return &av.Packet{}, nil
}

func (e *rawVideoEncoder) Close() error {
	e.opened = false
	return nil
}

// pcmEncoder passes S16 samples through, optionally companded to G.711
// mu-law or A-law.
type pcmEncoder struct {
	def    av.StreamDef
	opened bool
}

func (e *pcmEncoder) Def() av.StreamDef {
	return e.def
}

func (e *pcmEncoder) Open(ctx context.Context) error {
	if e.def.Codec != av.PCM && e.def.SampleFormat != av.S16 {
		return errors.New("engine: G.711 wants S16 input")
	}
	e.opened = true
	return nil
}

func (e *pcmEncoder) Encode(ctx context.Context, f av.Frame) (*av.Packet, error) {
	if !e.opened {
		return nil, ErrorNotOpened
	}
	af := f.(*av.AudioFrame)
	var data []byte
	for _, plane := range af.Data {
		data = append(data, plane...)
	}
	switch e.def.Codec {
	case av.PCM_MULAW:
		data = compandMulaw(data)
	case av.PCM_ALAW:
		data = compandAlaw(data)
	}
	return &av.Packet{
		IsKeyFrame: true,
		Pts:        af.Pts,
		Dts:        af.Pts,
		TimeBase:   af.TimeBase,
		Data:       data,
	}, nil
}

func (e *pcmEncoder) Finalize(ctx context.Context) (*av.Packet, error) {
	return &av.Packet{}, nil
}

func (e *pcmEncoder) Close() error {
	e.opened = false
	return nil
}

// compandMulaw converts little-endian S16 samples to G.711 mu-law.
func compandMulaw(in []byte) []byte {
	out := make([]byte, len(in)/2)
	for i := range out {
		out[i] = mulawByte(int16(uint16(in[2*i]) | uint16(in[2*i+1])<<8))
	}
	return out
}

// compandAlaw converts little-endian S16 samples to G.711 A-law.
func compandAlaw(in []byte) []byte {
	out := make([]byte, len(in)/2)
	for i := range out {
		out[i] = alawByte(int16(uint16(in[2*i]) | uint16(in[2*i+1])<<8))
	}
	return out
}

const mulawBias = 0x84

func mulawByte(s int16) byte {
	sign := byte(0)
	if s < 0 {
		sign = 0x80
		if s == -32768 {
			s = -32767
		}
		s = -s
	}
	v := int32(s) + mulawBias
	if v > 0x7fff {
		v = 0x7fff
	}
	seg := int32(7)
	for mask := int32(0x4000); seg > 0 && v&mask == 0; mask >>= 1 {
		seg--
	}
	low := byte(v>>(uint(seg)+3)) & 0x0f
	return ^(sign | byte(seg)<<4 | low)
}

func alawByte(s int16) byte {
	mask := byte(0xd5)
	v := int32(s)
	if v < 0 {
		mask = 0x55
		v = -v - 1
	}
	var out byte
	if v < 256 {
		out = byte(v >> 4)
	} else {
		seg := uint(0)
		for w := v >> 8; w != 0 && seg < 7; w >>= 1 {
			seg++
		}
		out = byte(seg)<<4 | byte(v>>(seg+3))&0x0f
	}
	return out ^ mask
}
