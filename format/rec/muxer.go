// Package rec writes streams into a flat record file: one gob-encoded
// header carrying the stream definitions, then gob-encoded packets in
// write order. Packets land in a uuid-named temp file that is renamed
// into place when the trailer is written, so a crash never leaves a
// half-written file under the final name.
package rec

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/moby/sys/mountinfo"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/deepch/avmux/av"
)

var ErrorNoMount = errors.New("rec: not mount ready")

type header struct {
	Streams []av.StreamDef
}

type Muxer struct {
	target string
	mpoint []string
	defs   []av.StreamDef
	f      *os.File
	enc    *gob.Encoder
	opened bool
}

func NewMuxer(target string) *Muxer {
	return &Muxer{target: target}
}

// SetMountPoints makes Open place the file under whichever mount point
// currently has the lowest disk usage; target is treated as a relative
// path below it.
func (m *Muxer) SetMountPoints(mpoint []string) {
	m.mpoint = mpoint
}

func (m *Muxer) AddVideoStream(ctx context.Context, enc av.CodecEncoder, rate av.Rational) error {
	def := enc.Def()
	if !def.Codec.IsVideo() {
		return fmt.Errorf("rec: codec %v is not video", def.Codec)
	}
	def.FrameRate = rate
	m.defs = append(m.defs, def)
	return nil
}

func (m *Muxer) AddAudioStream(ctx context.Context, enc av.CodecEncoder) error {
	def := enc.Def()
	if !def.Codec.IsAudio() {
		return fmt.Errorf("rec: codec %v is not audio", def.Codec)
	}
	m.defs = append(m.defs, def)
	return nil
}

func (m *Muxer) Open(ctx context.Context) (err error) {
	target, err := m.filePatch()
	if err != nil {
		return
	}
	if err = os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return
	}
	tmp := filepath.Join(filepath.Dir(target), fmt.Sprintf("tmp_%s_%d.rec", uuid.New(), time.Now().Unix()))
	if m.f, err = os.Create(tmp); err != nil {
		return
	}
	m.enc = gob.NewEncoder(m.f)
	m.opened = true
	m.target = target

	return
}

func (m *Muxer) WriteHeader(ctx context.Context) error {
	if !m.opened {
		return errors.New("rec: not opened")
	}
	return m.enc.Encode(header{Streams: m.defs})
}

func (m *Muxer) Flush(ctx context.Context) error {
	if m.f == nil {
		return nil
	}
	return m.f.Sync()
}

func (m *Muxer) WritePacket(ctx context.Context, pkt *av.Packet) error {
	if !m.opened {
		return errors.New("rec: not opened")
	}
	return m.enc.Encode(pkt)
}

// WriteTrailer renames the temp file into its final place.
func (m *Muxer) WriteTrailer(ctx context.Context) error {
	if m.f == nil {
		return nil
	}
	if err := m.f.Sync(); err != nil {
		return err
	}
	return os.Rename(m.f.Name(), m.target)
}

func (m *Muxer) Close(ctx context.Context) error {
	m.opened = false
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}

// filePatch picks the least used mount point, when any are configured.
func (m *Muxer) filePatch() (string, error) {
	if len(m.mpoint) == 0 {
		return m.target, nil
	}
	var (
		mu = float64(100)
		ui = -1
	)
	for i, p := range m.mpoint {
		if ok, err := mountinfo.Mounted(p); err == nil && ok {
			if d, err := disk.Usage(p); err == nil {
				if d.UsedPercent < mu {
					ui = i
					mu = d.UsedPercent
				}
			}
		}
	}
	if ui == -1 {
		return "", ErrorNoMount
	}
	return filepath.Join(m.mpoint[ui], m.target), nil
}
