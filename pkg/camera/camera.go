// Package camera captures a USB camera and serves it as an MJPEG stream.
package camera

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const boundary = "testbotframe"

// Source yields JPEG frames.
type Source interface {
	ReadJPEG() ([]byte, error)
	Close() error
}

type Camera struct {
	Name string

	src    Source
	period time.Duration

	lock        sync.Mutex
	latest      []byte
	frames      uint64
	subscribers map[chan []byte]struct{}

	done chan struct{}
}

// Start runs a capture loop reading src at fps until ctx is done.
func Start(ctx context.Context, name string, src Source, fps int) *Camera {
	if fps <= 0 {
		fps = 15
	}
	c := &Camera{
		Name:        name,
		src:         src,
		period:      time.Second / time.Duration(fps),
		subscribers: map[chan []byte]struct{}{},
		done:        make(chan struct{}),
	}
	go c.loop(ctx)
	return c
}

func (c *Camera) loop(ctx context.Context) {
	defer close(c.done)
	defer c.src.Close()

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		frame, err := c.src.ReadJPEG()
		if err != nil {
			if !failing {
				log.WithField("camera", c.Name).Println("Camera: failed to read frame:", err)
				failing = true
			}
			continue
		}
		if failing {
			log.WithField("camera", c.Name).Println("Camera: capturing again")
			failing = false
		}
		c.publish(frame)
	}
}

// Done is closed when the capture loop has exited.
func (c *Camera) Done() <-chan struct{} {
	return c.done
}

func (c *Camera) publish(frame []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.latest = frame
	c.frames++
	for sub := range c.subscribers {
		// Slow viewers skip frames rather than hold up capture.
		select {
		case <-sub:
		default:
		}
		sub <- frame
	}
}

// Latest returns the most recent frame, or nil before the first one.
func (c *Camera) Latest() []byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.latest
}

func (c *Camera) Frames() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.frames
}

func (c *Camera) subscribe() chan []byte {
	sub := make(chan []byte, 1)
	c.lock.Lock()
	defer c.lock.Unlock()
	c.subscribers[sub] = struct{}{}
	return sub
}

func (c *Camera) unsubscribe(sub chan []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.subscribers, sub)
}

// ServeHTTP serves "?action=snapshot" as a single JPEG and anything else as
// a multipart MJPEG stream.
func (c *Camera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") == "snapshot" {
		c.ServeSnapshot(w, r)
		return
	}
	c.ServeStream(w, r)
}

func (c *Camera) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	frame := c.Latest()
	if frame == nil {
		http.Error(w, "no frame captured yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(frame)
}

func (c *Camera) ServeStream(w http.ResponseWriter, r *http.Request) {
	sub := c.subscribe()
	defer c.unsubscribe(sub)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)

	if frame := c.Latest(); frame != nil {
		if writeFrame(w, frame) != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case frame := <-sub:
			if writeFrame(w, frame) != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, frame []byte) error {
	_, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame))
	if err != nil {
		return err
	}
	if _, err = w.Write(frame); err != nil {
		return err
	}
	_, err = w.Write([]byte("\r\n"))
	return err
}
