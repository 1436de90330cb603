package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/deepch/avmux/av"
)

func TestNewEncoderUnsupported(t *testing.T) {
	e := New()
	_, err := e.NewEncoder(av.VideoDef(av.H264, 0, 64, 48, av.Rational{Num: 25, Den: 1}, av.I420))
	if !errors.Is(err, ErrorCodecNotSupported) {
		t.Fatalf("expected ErrorCodecNotSupported, got %v", err)
	}
	// codec/stream type mismatch
	_, err = e.NewEncoder(av.StreamDef{Type: av.Audio, Codec: av.RAWVIDEO, SampleRate: 8000, SampleFormat: av.S16, ChannelLayout: av.CH_MONO})
	if !errors.Is(err, ErrorCodecNotSupported) {
		t.Fatalf("expected ErrorCodecNotSupported, got %v", err)
	}
}

func TestNewContainerUnknownFormat(t *testing.T) {
	e := New()
	if _, err := e.NewContainer("out", "mp9"); !errors.Is(err, ErrorFormatNotSupported) {
		t.Fatalf("expected ErrorFormatNotSupported, got %v", err)
	}
	if _, err := e.NewContainer("out", ""); err != nil {
		t.Fatalf("default format: %v", err)
	}
	if _, err := e.NewContainer("out", "rec"); err != nil {
		t.Fatalf("rec format: %v", err)
	}
}

func TestRawVideoEncode(t *testing.T) {
	e := New()
	enc, err := e.NewEncoder(av.VideoDef(av.RAWVIDEO, 0, 4, 4, av.Rational{Num: 25, Den: 1}, av.I420))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err = enc.Encode(ctx, &av.VideoFrame{Data: [][]byte{{1, 2}}}); err != ErrorNotOpened {
		t.Fatalf("expected ErrorNotOpened, got %v", err)
	}
	if err = enc.Open(ctx); err != nil {
		t.Fatal(err)
	}
	pkt, err := enc.Encode(ctx, &av.VideoFrame{Pts: 7, Data: [][]byte{{1, 2}, {3}, {4}}})
	if err != nil {
		t.Fatal(err)
	}
	if string(pkt.Data) != "\x01\x02\x03\x04" {
		t.Errorf("planes not concatenated: %v", pkt.Data)
	}
	if pkt.Pts != 7 || !pkt.IsKeyFrame {
		t.Errorf("packet metadata wrong: %+v", pkt)
	}
	if tail, _ := enc.Finalize(ctx); tail.Complete() {
		t.Errorf("raw video buffered a trailing packet")
	}
}

func TestMulawEncode(t *testing.T) {
	values := []struct {
		s int16
		v byte
	}{
		{0, 0xff},
		{-1, 0x7f},
		{32767, 0x80},
		{-32768, 0x00},
	}
	for _, ex := range values {
		if b := mulawByte(ex.s); b != ex.v {
			t.Errorf("mulaw %d: expected %#02x, got %#02x", ex.s, ex.v, b)
		}
	}
}

func TestAlawEncode(t *testing.T) {
	values := []struct {
		s int16
		v byte
	}{
		{0, 0xd5},
		{-1, 0x55},
		{32767, 0xaa},
		{-32768, 0x2a},
	}
	for _, ex := range values {
		if b := alawByte(ex.s); b != ex.v {
			t.Errorf("alaw %d: expected %#02x, got %#02x", ex.s, ex.v, b)
		}
	}
}

func TestPCMEncodeHalvesSize(t *testing.T) {
	e := New()
	enc, err := e.NewEncoder(av.AudioDef(av.PCM_MULAW, 64000, av.CH_MONO, av.S16, 8000))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err = enc.Open(ctx); err != nil {
		t.Fatal(err)
	}
	in := make([]byte, 320)
	pkt, err := enc.Encode(ctx, &av.AudioFrame{Samples: 160, Data: [][]byte{in}})
	if err != nil {
		t.Fatal(err)
	}
	if len(pkt.Data) != 160 {
		t.Fatalf("expected 160 companded bytes, got %d", len(pkt.Data))
	}
}
