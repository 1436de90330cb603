package main

import (
	"context"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deepch/avmux/av"
	"github.com/deepch/avmux/encode"
	"github.com/deepch/avmux/engine"
	"github.com/deepch/avmux/mux"
)

type Config struct {
	Target   string        `yaml:"target"`
	Format   string        `yaml:"format"`
	Duration time.Duration `yaml:"duration"`
	Video    struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
		FPS    int `yaml:"fps"`
	} `yaml:"video"`
	Audio struct {
		SampleRate int `yaml:"sample_rate"`
	} `yaml:"audio"`
}

func loadConfig() *Config {
	config := &Config{Target: "session.rec", Format: "rec", Duration: 2 * time.Second}
	config.Video.Width, config.Video.Height, config.Video.FPS = 320, 240, 25
	config.Audio.SampleRate = 8000
	data, err := os.ReadFile("recorder.yaml")
	if err != nil {
		return config
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		log.Fatalln("parse recorder.yaml:", err)
	}
	return config
}

func main() {
	config := loadConfig()
	ctx := context.Background()
	eng := engine.New()

	video, err := encode.NewEncoder(eng, av.VideoDef(av.RAWVIDEO, 0,
		config.Video.Width, config.Video.Height, av.Rational{Num: config.Video.FPS, Den: 1}, av.I420))
	if err != nil {
		log.Fatalln(err)
	}
	audio, err := encode.NewEncoder(eng, av.AudioDef(av.PCM_MULAW, 64000, av.CH_MONO, av.S16, config.Audio.SampleRate))
	if err != nil {
		log.Fatalln(err)
	}
	m, err := mux.NewMuxer(eng, config.Target, video, audio)
	if err != nil {
		log.Fatalln(err)
	}
	m.SetFormat(config.Format)

	if err = video.Open(ctx); err != nil {
		log.Fatalln(err)
	}
	if err = audio.Open(ctx); err != nil {
		log.Fatalln(err)
	}

	frames := int(config.Duration/time.Second) * config.Video.FPS
	samplesPerFrame := config.Audio.SampleRate / config.Video.FPS
	plane := make([]byte, config.Video.Width*config.Video.Height*3/2)
	samples := make([]byte, samplesPerFrame*2)
	for i := 0; i < frames; i++ {
		if _, err = video.Encode(ctx, &av.VideoFrame{
			Width: config.Video.Width, Height: config.Video.Height,
			PixelFormat: av.I420, Pts: int64(i), Data: [][]byte{plane},
		}); err != nil {
			log.Fatalln("video encode:", err)
		}
		if _, err = audio.Encode(ctx, &av.AudioFrame{
			SampleRate: config.Audio.SampleRate, SampleFormat: av.S16, ChannelLayout: av.CH_MONO,
			Samples: samplesPerFrame, Pts: int64(i * samplesPerFrame), Data: [][]byte{samples},
		}); err != nil {
			log.Fatalln("audio encode:", err)
		}
	}
	if _, err = video.Flush(ctx); err != nil {
		log.Fatalln(err)
	}
	if _, err = audio.Flush(ctx); err != nil {
		log.Fatalln(err)
	}
	<-m.Done()
	if err = m.Err(); err != nil {
		log.Fatalln(err)
	}
	log.Println("wrote", config.Target)
}
