package rec

import (
	"encoding/gob"
	"io"

	"github.com/deepch/avmux/av"
)

// Demuxer reads a record file back: the stream definitions first, then
// packets in their original write order.
type Demuxer struct {
	dec  *gob.Decoder
	defs []av.StreamDef
	read bool
}

func NewDemuxer(r io.Reader) *Demuxer {
	return &Demuxer{dec: gob.NewDecoder(r)}
}

func (d *Demuxer) Streams() ([]av.StreamDef, error) {
	if err := d.readHeader(); err != nil {
		return nil, err
	}
	return d.defs, nil
}

// ReadPacket returns the next packet, io.EOF at end of file.
func (d *Demuxer) ReadPacket() (*av.Packet, error) {
	if err := d.readHeader(); err != nil {
		return nil, err
	}
	var pkt av.Packet
	if err := d.dec.Decode(&pkt); err != nil {
		return nil, err
	}
	return &pkt, nil
}

func (d *Demuxer) readHeader() error {
	if d.read {
		return nil
	}
	var h header
	if err := d.dec.Decode(&h); err != nil {
		return err
	}
	d.defs = h.Streams
	d.read = true
	return nil
}
