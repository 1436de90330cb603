package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/deepch/avmux/av"
	"github.com/deepch/avmux/encode"
	"github.com/deepch/avmux/engine"
	"github.com/deepch/avmux/format/mse"
	"github.com/deepch/avmux/mux"
)

// Streams synthetic raw video to every websocket client connecting to
// /stream, one muxer per connection.
func main() {
	http.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		wsm, err := mse.NewMuxer(r, w)
		if err != nil {
			log.Println("upgrade:", err)
			return
		}
		eng := engine.New()
		eng.RegisterFormat("mse", func(target string) (av.Container, error) {
			return wsm, nil
		})

		ctx := r.Context()
		video, err := encode.NewEncoder(eng, av.VideoDef(av.RAWVIDEO, 0, 320, 240, av.Rational{Num: 25, Den: 1}, av.I420))
		if err != nil {
			log.Println(err)
			return
		}
		m, err := mux.NewMuxer(eng, "", video)
		if err != nil {
			log.Println(err)
			return
		}
		m.SetFormat("mse")
		if err = video.Open(ctx); err != nil {
			log.Println(err)
			return
		}

		plane := make([]byte, 320*240*3/2)
		tick := time.NewTicker(time.Second / 25)
		defer tick.Stop()
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				video.Flush(context.Background())
				<-m.Done()
				return
			case <-tick.C:
			}
			if _, err = video.Encode(ctx, &av.VideoFrame{
				Width: 320, Height: 240, PixelFormat: av.I420,
				Pts: int64(i), Data: [][]byte{plane},
			}); err != nil {
				log.Println("encode:", err)
				return
			}
		}
	})
	log.Println("listening on :8089")
	log.Fatalln(http.ListenAndServe(":8089", nil))
}
