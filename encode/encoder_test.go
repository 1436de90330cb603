package encode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deepch/avmux/av"
)

type fakeCodec struct {
	def     av.StreamDef
	openErr error
	encErr  error
	finErr  error
	gate    chan struct{}
	frames  []av.Frame
	closed  bool
	buffer  bool
}

func (c *fakeCodec) Def() av.StreamDef {
	return c.def
}

func (c *fakeCodec) Open(ctx context.Context) error {
	if c.gate != nil {
		<-c.gate
	}
	return c.openErr
}

func (c *fakeCodec) Encode(ctx context.Context, f av.Frame) (*av.Packet, error) {
	if c.gate != nil {
		<-c.gate
	}
	if c.encErr != nil {
		return nil, c.encErr
	}
	c.frames = append(c.frames, f)
	if c.buffer {
		c.buffer = false
		return &av.Packet{}, nil
	}
	return &av.Packet{Data: []byte{byte(len(c.frames))}}, nil
}

func (c *fakeCodec) Finalize(ctx context.Context) (*av.Packet, error) {
	if c.finErr != nil {
		return nil, c.finErr
	}
	return &av.Packet{Data: []byte{0xff}}, nil
}

func (c *fakeCodec) Close() error {
	c.closed = true
	return nil
}

type fakeEngine struct {
	codec  *fakeCodec
	newErr error
}

func (e *fakeEngine) NewEncoder(def av.StreamDef) (av.CodecEncoder, error) {
	if e.newErr != nil {
		return nil, e.newErr
	}
	e.codec = &fakeCodec{def: def}
	return e.codec, nil
}

func (e *fakeEngine) NewContainer(target, format string) (av.Container, error) {
	return nil, errors.New("no container")
}

type fakeDest struct {
	mu        sync.Mutex
	packets   []*av.Packet
	finals    int
	writeErr  error
	destroyed error
}

func (d *fakeDest) WritePacket(pkt *av.Packet, done func(error)) error {
	if d.writeErr != nil {
		if done != nil {
			done(d.writeErr)
		}
		return d.writeErr
	}
	d.mu.Lock()
	d.packets = append(d.packets, pkt)
	d.mu.Unlock()
	if done != nil {
		done(nil)
	}
	return nil
}

func (d *fakeDest) Final() {
	d.mu.Lock()
	d.finals++
	d.mu.Unlock()
}

func (d *fakeDest) Destroy(err error) {
	d.mu.Lock()
	d.destroyed = err
	d.mu.Unlock()
}

func videoDef() av.StreamDef {
	return av.VideoDef(av.RAWVIDEO, 0, 64, 48, av.Rational{Num: 25, Den: 1}, av.I420)
}

func audioDef() av.StreamDef {
	return av.AudioDef(av.PCM, 0, av.CH_MONO, av.S16, 8000)
}

func videoFrame() *av.VideoFrame {
	return &av.VideoFrame{Width: 64, Height: 48, PixelFormat: av.I420, Data: [][]byte{{1, 2, 3}}}
}

func TestNewEncoderUnsupportedCodec(t *testing.T) {
	eng := &fakeEngine{newErr: errors.New("unsupported codec")}
	if _, err := NewEncoder(eng, videoDef()); err == nil {
		t.Fatalf("expected resolve error")
	}
}

func TestNewEncoderBadDef(t *testing.T) {
	def := videoDef()
	def.SampleRate = 8000
	if _, err := NewEncoder(&fakeEngine{}, def); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestEncodeBeforeOpen(t *testing.T) {
	e, _ := NewEncoder(&fakeEngine{}, videoDef())
	if _, err := e.Encode(context.Background(), videoFrame()); err != ErrorNotPrimed {
		t.Fatalf("expected ErrorNotPrimed, got %v", err)
	}
}

func TestOpenReady(t *testing.T) {
	eng := &fakeEngine{}
	e, _ := NewEncoder(eng, videoDef())
	select {
	case <-e.Ready():
		t.Fatalf("ready before open")
	default:
	}
	if err := e.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	select {
	case <-e.Ready():
	default:
		t.Fatalf("not ready after open")
	}
}

func TestOpenFailure(t *testing.T) {
	eng := &fakeEngine{}
	e, _ := NewEncoder(eng, videoDef())
	eng.codec.openErr = errors.New("open failed")
	if err := e.Open(context.Background()); err == nil {
		t.Fatalf("expected open error")
	}
	if _, err := e.Encode(context.Background(), videoFrame()); err != ErrorClosed {
		t.Fatalf("expected ErrorClosed after failed open, got %v", err)
	}
}

func TestEncodeWrongKind(t *testing.T) {
	e, _ := NewEncoder(&fakeEngine{}, videoDef())
	e.Open(context.Background())
	if _, err := e.Encode(context.Background(), &av.AudioFrame{Data: [][]byte{{1}}}); err != ErrorNotVideoFrame {
		t.Fatalf("expected ErrorNotVideoFrame, got %v", err)
	}

	a, _ := NewEncoder(&fakeEngine{}, audioDef())
	a.Open(context.Background())
	if _, err := a.Encode(context.Background(), videoFrame()); err != ErrorNotAudioFrame {
		t.Fatalf("expected ErrorNotAudioFrame, got %v", err)
	}
}

func TestEncodeIncompleteFrame(t *testing.T) {
	e, _ := NewEncoder(&fakeEngine{}, videoDef())
	e.Open(context.Background())
	f := videoFrame()
	f.Incomplete = true
	if _, err := e.Encode(context.Background(), f); err != ErrorIncomplete {
		t.Fatalf("expected ErrorIncomplete, got %v", err)
	}
}

func TestEncodeBusy(t *testing.T) {
	eng := &fakeEngine{}
	e, _ := NewEncoder(eng, videoDef())
	e.Open(context.Background())
	eng.codec.gate = make(chan struct{})

	first := make(chan error, 1)
	go func() {
		_, err := e.Encode(context.Background(), videoFrame())
		first <- err
	}()
	// wait until the first call is in flight
	for {
		e.mu.Lock()
		busy := e.busy
		e.mu.Unlock()
		if busy {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := e.Encode(context.Background(), videoFrame()); err != ErrorBusy {
		t.Fatalf("expected ErrorBusy, got %v", err)
	}
	eng.codec.gate <- struct{}{}
	if err := <-first; err != nil {
		t.Fatalf("in-flight encode disturbed: %v", err)
	}
}

func TestEncodeStampsFrame(t *testing.T) {
	eng := &fakeEngine{}
	e, _ := NewEncoder(eng, videoDef())
	e.Open(context.Background())
	f := videoFrame()
	f.PictType = av.PictureI
	if _, err := e.Encode(context.Background(), f); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if f.PictType != av.PictureNone {
		t.Errorf("forced picture type not cleared")
	}
	if f.TimeBase != (av.Rational{Num: 1, Den: 25}) {
		t.Errorf("time base not stamped, got %s", f.TimeBase)
	}
}

func TestEncodeForwardsInOrder(t *testing.T) {
	eng := &fakeEngine{}
	e, _ := NewEncoder(eng, videoDef())
	dst := &fakeDest{}
	e.SetOutput(dst)
	e.Open(context.Background())
	for i := 0; i < 3; i++ {
		if _, err := e.Encode(context.Background(), videoFrame()); err != nil {
			t.Fatalf("encode %d: %v", i, err)
		}
	}
	if len(dst.packets) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(dst.packets))
	}
	for i, pkt := range dst.packets {
		if pkt.Data[0] != byte(i+1) {
			t.Errorf("packet %d out of order", i)
		}
	}
}

func TestEncodeBufferingNotForwarded(t *testing.T) {
	eng := &fakeEngine{}
	e, _ := NewEncoder(eng, videoDef())
	dst := &fakeDest{}
	e.SetOutput(dst)
	e.Open(context.Background())
	eng.codec.buffer = true
	pkt, err := e.Encode(context.Background(), videoFrame())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if pkt.Complete() {
		t.Fatalf("expected buffering packet")
	}
	if len(dst.packets) != 0 {
		t.Fatalf("buffering packet forwarded")
	}
}

func TestFlush(t *testing.T) {
	eng := &fakeEngine{}
	e, _ := NewEncoder(eng, videoDef())
	dst := &fakeDest{}
	e.SetOutput(dst)
	e.Open(context.Background())
	e.Encode(context.Background(), videoFrame())
	pkt, err := e.Flush(context.Background())
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !pkt.Complete() {
		t.Fatalf("expected trailing packet")
	}
	if dst.finals != 1 {
		t.Errorf("expected final signal, got %d", dst.finals)
	}
	if !eng.codec.closed {
		t.Errorf("engine encoder not released")
	}
	if _, err = e.Encode(context.Background(), videoFrame()); err != ErrorClosed {
		t.Errorf("expected ErrorClosed after flush, got %v", err)
	}
}

func TestEncodeRejectedBySink(t *testing.T) {
	eng := &fakeEngine{}
	e, _ := NewEncoder(eng, videoDef())
	dst := &fakeDest{writeErr: errors.New("sink gone")}
	e.SetOutput(dst)
	e.Open(context.Background())
	if _, err := e.Encode(context.Background(), videoFrame()); err != dst.writeErr {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestFlushFinalizeFailure(t *testing.T) {
	eng := &fakeEngine{}
	e, _ := NewEncoder(eng, videoDef())
	dst := &fakeDest{}
	e.SetOutput(dst)
	e.Open(context.Background())
	finErr := errors.New("finalize failed")
	eng.codec.finErr = finErr
	if _, err := e.Flush(context.Background()); err != finErr {
		t.Fatalf("expected finalize error, got %v", err)
	}
	if !eng.codec.closed {
		t.Errorf("engine encoder not released on finalize failure")
	}
	if dst.destroyed != finErr {
		t.Errorf("output not destroyed, got %v", dst.destroyed)
	}
	if dst.finals != 0 {
		t.Errorf("final signalled on failed flush")
	}
	if _, err := e.Encode(context.Background(), videoFrame()); err != ErrorClosed {
		t.Errorf("expected ErrorClosed after failed flush, got %v", err)
	}
}
