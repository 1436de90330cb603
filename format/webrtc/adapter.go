// Package webrtc delivers a muxed output to one WebRTC peer: one local
// track per registered stream, packets forwarded as media samples. The
// peer's offer arrives base64 encoded; Answer returns the base64 answer
// once the header is written.
package webrtc

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/deepch/avmux/av"
)

const (
	// MimeTypeH264 H264 MIME type.
	MimeTypeH264 = "video/h264"
	// MimeTypeOpus Opus MIME type
	MimeTypeOpus = "audio/opus"
	// MimeTypePCMU PCMU MIME type
	MimeTypePCMU = "audio/PCMU"
	// MimeTypePCMA PCMA MIME type
	MimeTypePCMA = "audio/PCMA"
)

var (
	ErrorCodecNotSupported = errors.New("WebRTC Codec Not Supported")
	ErrorClientOffline     = errors.New("WebRTC Client Offline")
	ErrorNotTrackAvailable = errors.New("WebRTC Not Track Available")
)

type Stream struct {
	def   av.StreamDef
	ts    time.Duration
	track *webrtc.TrackLocalStaticSample
}

type Muxer struct {
	sdp64   string
	answer  string
	streams map[int8]*Stream
	status  webrtc.ICEConnectionState
	stop    bool
	pc      *webrtc.PeerConnection
}

func NewMuxer(sdp64 string) *Muxer {
	return &Muxer{sdp64: sdp64, streams: make(map[int8]*Stream)}
}

func mimeType(codec av.CodecType) (string, error) {
	switch codec {
	case av.H264:
		return MimeTypeH264, nil
	case av.OPUS:
		return MimeTypeOpus, nil
	case av.PCM_MULAW:
		return MimeTypePCMU, nil
	case av.PCM_ALAW:
		return MimeTypePCMA, nil
	}
	return "", ErrorCodecNotSupported
}

func (element *Muxer) addStream(def av.StreamDef) error {
	mime, err := mimeType(def.Codec)
	if err != nil {
		return err
	}
	kind := "audio"
	if def.Codec.IsVideo() {
		kind = "video"
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType: mime,
	}, "avmux-"+kind, "avmux-"+kind)
	if err != nil {
		return err
	}
	element.streams[int8(len(element.streams))] = &Stream{def: def, track: track}
	return nil
}

func (element *Muxer) AddVideoStream(ctx context.Context, enc av.CodecEncoder, rate av.Rational) error {
	def := enc.Def()
	def.FrameRate = rate
	return element.addStream(def)
}

func (element *Muxer) AddAudioStream(ctx context.Context, enc av.CodecEncoder) error {
	return element.addStream(enc.Def())
}

// Open negotiates the peer connection from the client offer.
func (element *Muxer) Open(ctx context.Context) error {
	if len(element.streams) == 0 {
		return ErrorNotTrackAvailable
	}
	sdpB, err := base64.StdEncoding.DecodeString(element.sdp64)
	if err != nil {
		return err
	}
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  string(sdpB),
	}
	peerConnection, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	for _, stream := range element.streams {
		if _, err = peerConnection.AddTrack(stream.track); err != nil {
			peerConnection.Close()
			return err
		}
	}
	peerConnection.OnICEConnectionStateChange(func(connectionState webrtc.ICEConnectionState) {
		element.status = connectionState
		if connectionState == webrtc.ICEConnectionStateDisconnected {
			element.close()
		}
	})
	if err = peerConnection.SetRemoteDescription(offer); err != nil {
		peerConnection.Close()
		return err
	}
	gatherCompletePromise := webrtc.GatheringCompletePromise(peerConnection)
	answer, err := peerConnection.CreateAnswer(nil)
	if err != nil {
		peerConnection.Close()
		return err
	}
	if err = peerConnection.SetLocalDescription(answer); err != nil {
		peerConnection.Close()
		return err
	}
	element.pc = peerConnection
	waitT := time.NewTimer(time.Second * 10)
	defer waitT.Stop()
	select {
	case <-waitT.C:
		return errors.New("gatherCompletePromise wait")
	case <-ctx.Done():
		return ctx.Err()
	case <-gatherCompletePromise:
		//Connected
	}
	resp := peerConnection.LocalDescription()
	element.answer = base64.StdEncoding.EncodeToString([]byte(resp.SDP))
	return nil
}

// Answer returns the base64 encoded local description, available after
// Open.
func (element *Muxer) Answer() string {
	return element.answer
}

func (element *Muxer) WriteHeader(ctx context.Context) error {
	if element.pc == nil {
		return ErrorClientOffline
	}
	return nil
}

func (element *Muxer) Flush(ctx context.Context) error {
	return nil
}

func (element *Muxer) WritePacket(ctx context.Context, pkt *av.Packet) (err error) {
	if element.stop {
		return ErrorClientOffline
	}
	if element.status != webrtc.ICEConnectionStateConnected {
		return nil
	}
	stream, ok := element.streams[pkt.Idx]
	if !ok {
		return nil
	}
	t := pkt.TimeBase.Duration(pkt.Pts)
	if stream.ts == 0 {
		stream.ts = t
	}
	err = stream.track.WriteSample(media.Sample{Data: pkt.Data, Duration: t - stream.ts})
	if err == nil {
		stream.ts = t
	}
	return err
}

func (element *Muxer) WriteTrailer(ctx context.Context) error {
	return element.close()
}

func (element *Muxer) Close(ctx context.Context) error {
	return element.close()
}

func (element *Muxer) close() error {
	if element.stop {
		return nil
	}
	element.stop = true
	if element.pc != nil {
		return element.pc.Close()
	}
	return nil
}
