// Package mse streams a muxed output over a websocket in MSE fashion:
// stream metadata as one text message, then one binary message per
// packet. The reader side keeps the connection drained the way browsers
// expect.
package mse

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/deepch/avmux/av"
)

var Debug bool

type meta struct {
	Type       string `json:"type"`
	Codec      string `json:"codec"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

type Muxer struct {
	conn   net.Conn
	defs   []av.StreamDef
	closed bool
}

func NewMuxer(r *http.Request, w http.ResponseWriter) (*Muxer, error) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return nil, err
	}
	go func() {
		defer func() {
			conn.Close()
		}()
		for {
			if _, _, err = wsutil.NextReader(conn, ws.StateServerSide); err != nil {
				return
			}
		}
	}()

	return &Muxer{conn: conn}, nil
}

// NewConnMuxer wraps an already established connection.
func NewConnMuxer(conn net.Conn) *Muxer {
	return &Muxer{conn: conn}
}

func (m *Muxer) AddVideoStream(ctx context.Context, enc av.CodecEncoder, rate av.Rational) error {
	def := enc.Def()
	def.FrameRate = rate
	m.defs = append(m.defs, def)
	return nil
}

func (m *Muxer) AddAudioStream(ctx context.Context, enc av.CodecEncoder) error {
	m.defs = append(m.defs, enc.Def())
	return nil
}

func (m *Muxer) Open(ctx context.Context) error {
	return nil
}

func (m *Muxer) WriteHeader(ctx context.Context) (err error) {
	streams := make([]meta, 0, len(m.defs))
	for _, def := range m.defs {
		streams = append(streams, meta{
			Type:       def.Type.String(),
			Codec:      def.Codec.String(),
			Width:      def.Width,
			Height:     def.Height,
			SampleRate: def.SampleRate,
			Channels:   def.ChannelLayout.Count(),
		})
	}
	b, err := json.Marshal(streams)
	if err != nil {
		return
	}
	return wsutil.WriteServerText(m.conn, b)
}

func (m *Muxer) Flush(ctx context.Context) error {
	return nil
}

// WritePacket frames one packet as idx(1) keyframe(1) pts(8) data. The
// pts goes on the wire in milliseconds so the browser side needs no per
// stream time base.
func (m *Muxer) WritePacket(ctx context.Context, pkt *av.Packet) (err error) {
	buf := make([]byte, 10+len(pkt.Data))
	buf[0] = byte(pkt.Idx)
	if pkt.IsKeyFrame {
		buf[1] = 1
	}
	ms := av.Rescale(pkt.Pts, pkt.TimeBase, av.Rational{Num: 1, Den: 1000})
	binary.LittleEndian.PutUint64(buf[2:], uint64(ms))
	copy(buf[10:], pkt.Data)
	return wsutil.WriteServerBinary(m.conn, buf)
}

func (m *Muxer) WriteTrailer(ctx context.Context) error {
	return m.close()
}

func (m *Muxer) Close(ctx context.Context) error {
	return m.close()
}

func (m *Muxer) close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.conn.Close()
}
