// Package engine ships the default codec engine: passthrough raw
// video/PCM encoders, G.711 companding encoders and a registry of
// container formats. Real codecs plug in behind the same av.Engine
// boundary.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/deepch/avmux/av"
	"github.com/deepch/avmux/format/rec"
)

var (
	ErrorCodecNotSupported  = errors.New("engine: codec not supported")
	ErrorFormatNotSupported = errors.New("engine: format not supported")
)

// FormatFunc builds a container writer for an output target.
type FormatFunc func(target string) (av.Container, error)

type Engine struct {
	mu      sync.Mutex
	formats map[string]FormatFunc
}

// New returns an engine with the "rec" record format registered.
func New() *Engine {
	e := &Engine{formats: make(map[string]FormatFunc)}
	e.RegisterFormat("rec", func(target string) (av.Container, error) {
		return rec.NewMuxer(target), nil
	})
	return e
}

// RegisterFormat makes a container format available under name. The
// first registered format is also the default for an empty format name.
func (e *Engine) RegisterFormat(name string, fn FormatFunc) {
	e.mu.Lock()
	e.formats[name] = fn
	if _, ok := e.formats[""]; !ok {
		e.formats[""] = fn
	}
	e.mu.Unlock()
}

func (e *Engine) NewEncoder(def av.StreamDef) (av.CodecEncoder, error) {
	switch def.Codec {
	case av.RAWVIDEO:
		if def.Type != av.Video {
			return nil, fmt.Errorf("%w: %v on %s stream", ErrorCodecNotSupported, def.Codec, def.Type)
		}
		return &rawVideoEncoder{def: def}, nil
	case av.PCM, av.PCM_MULAW, av.PCM_ALAW:
		if def.Type != av.Audio {
			return nil, fmt.Errorf("%w: %v on %s stream", ErrorCodecNotSupported, def.Codec, def.Type)
		}
		return &pcmEncoder{def: def}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrorCodecNotSupported, def.Codec)
}

func (e *Engine) NewContainer(target, format string) (av.Container, error) {
	e.mu.Lock()
	fn, ok := e.formats[format]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrorFormatNotSupported, format)
	}
	return fn(target)
}
