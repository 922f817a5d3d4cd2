package screen

import (
	"context"
	"image"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fogleman/gg"
	log "github.com/sirupsen/logrus"
)

type Level int

const (
	LevelInfo Level = iota
	LevelErr
)

const S = 128

var (
	lock sync.Mutex

	mode    = "BOOT"
	enabled bool
	notices = map[string]Level{}
)

func SetMode(m string) {
	lock.Lock()
	defer lock.Unlock()
	mode = m
}

func SetEnabled(e bool) {
	lock.Lock()
	defer lock.Unlock()
	enabled = e
}

func SetNotice(msg string, level Level) {
	lock.Lock()
	defer lock.Unlock()
	notices[msg] = level
}

func ClearNotice(msg string) {
	lock.Lock()
	defer lock.Unlock()
	delete(notices, msg)
}

type snapshot struct {
	mode    string
	enabled bool
	notices []string
	levels  []Level
}

func current() snapshot {
	lock.Lock()
	defer lock.Unlock()
	s := snapshot{mode: mode, enabled: enabled}
	for n := range notices {
		s.notices = append(s.notices, n)
	}
	sort.Strings(s.notices)
	for _, n := range s.notices {
		s.levels = append(s.levels, notices[n])
	}
	return s
}

// LoopUpdatingScreen redraws the 128x128 RGB565 framebuffer twice a second
// until ctx is done, then blanks it.
func LoopUpdatingScreen(ctx context.Context, device string) {
	f, err := os.OpenFile(device, os.O_RDWR, 0666)
	if err != nil {
		log.Println("Failed to open screen, ignoring")
		return
	}
	defer f.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var buf [S * S * 2]byte
			_, _ = f.Seek(0, 0)
			_, _ = f.Write(buf[:])
			return
		case <-ticker.C:
		}

		buf := toRGB565(Render())
		_, err = f.Seek(0, 0)
		if err != nil {
			log.Println("Screen failure: ", err)
			return
		}
		for i := 0; i < S; i++ {
			_, err = f.Write(buf[i*S*2 : (i+1)*S*2])
			if err != nil {
				log.Println("Screen failure: ", err)
				return
			}
			time.Sleep(10 * time.Microsecond)
		}
	}
}

// Render draws the current status.
func Render() image.Image {
	s := current()
	dc := gg.NewContext(S, S)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	// Enabled banner: green when enabled, red when disabled.
	if s.enabled {
		dc.SetRGB(0, 0.8, 0)
	} else {
		dc.SetRGB(0.8, 0.1, 0)
	}
	dc.DrawRectangle(0, 0, S, 24)
	dc.Fill()
	dc.SetRGB(0, 0, 0)
	if s.enabled {
		dc.DrawStringAnchored("ENABLED", S/2, 12, 0.5, 0.5)
	} else {
		dc.DrawStringAnchored("DISABLED", S/2, 12, 0.5, 0.5)
	}

	dc.SetRGBA(1, 0.9, 0, 1)
	dc.DrawStringAnchored(s.mode, S/2, 44, 0.5, 0.5)

	y := 70.0
	for i, n := range s.notices {
		if s.levels[i] == LevelErr {
			dc.Push()
			dc.Translate(10, y)
			DrawWarning(dc)
			dc.Pop()
			dc.SetRGB(1, 0.2, 0)
		} else {
			dc.SetRGB(1, 1, 1)
		}
		dc.DrawString(n, 24, y+4)
		y += 18
	}
	return dc.Image()
}

func toRGB565(img image.Image) []byte {
	buf := make([]byte, S*S*2)
	for y := 0; y < S; y++ {
		for x := 0; x < S; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(S-1-y)*2+(x)*S*2+1] = (rb << 3) | (gb >> 3)
			buf[(S-1-y)*2+(x)*S*2] = bb | (gb << 5)
		}
	}
	return buf
}

func DrawWarning(dc *gg.Context) {
	dc.SetRGB(1, 0.2, 0)
	dc.DrawRegularPolygon(3, 0, 0, 8, 0)
	dc.Fill()
	dc.SetRGBA(0, 0, 0, 0.9)
	dc.DrawString("!", -2, 3)
}
