// Package sound plays short cues (mode changes, start-up) on the speaker.
package sound

import (
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	log "github.com/sirupsen/logrus"
)

// InitSound starts the player goroutine and returns the channel it plays
// from.  A new sound cuts off the one playing.  Close the channel to stop.
func InitSound() chan string {
	soundsToPlay := make(chan string)
	go func() {
		defer func() {
			recover()
			for s := range soundsToPlay {
				log.Println("Unable to play", s)
			}
		}()
		sampleRate := beep.SampleRate(44100)
		err := speaker.Init(sampleRate, sampleRate.N(time.Second/5))
		if err != nil {
			log.Println("Failed to open speaker", err)
			for s := range soundsToPlay {
				log.Println("Unable to play", s)
			}
			return
		}
		var ctrl *beep.Ctrl
		var s beep.StreamSeekCloser
		for soundToPlay := range soundsToPlay {
			if ctrl != nil {
				speaker.Lock()
				ctrl.Paused = true
				ctrl.Streamer = nil
				speaker.Unlock()
				ctrl = nil
			}
			if s != nil {
				s.Close()
				s = nil
			}

			f, err := os.Open(soundToPlay)
			if err != nil {
				log.Println("Failed to open sound", err)
				continue
			}
			s, _, err = wav.Decode(f)
			if err != nil {
				log.Println("Failed to decode sound", err)
				f.Close()
				s = nil
				continue
			}
			ctrl = &beep.Ctrl{Streamer: s}
			speaker.Play(ctrl)
		}
	}()
	return soundsToPlay
}
