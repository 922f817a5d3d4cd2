package camera

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

type Config struct {
	Name    string
	Device  int
	Width   int
	Height  int
	FPS     int
	Quality int
}

// USBSource reads frames from a V4L2 device through OpenCV.
type USBSource struct {
	webcam  *gocv.VideoCapture
	img     gocv.Mat
	quality int
}

func OpenUSB(cfg Config) (*USBSource, error) {
	webcam, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, errors.Wrapf(err, "opening video capture device %d", cfg.Device)
	}
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	webcam.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	quality := cfg.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &USBSource{
		webcam:  webcam,
		img:     gocv.NewMat(),
		quality: quality,
	}, nil
}

func (s *USBSource) ReadJPEG() ([]byte, error) {
	if ok := s.webcam.Read(&s.img); !ok {
		return nil, errors.New("cannot read frame")
	}
	if s.img.Empty() {
		return nil, errors.New("empty frame")
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.img, []int{int(gocv.IMWriteJpegQuality), s.quality})
	if err != nil {
		return nil, errors.Wrap(err, "encoding frame")
	}
	defer buf.Close()
	// The native buffer is freed on Close; keep our own copy.
	return append([]byte(nil), buf.GetBytes()...), nil
}

func (s *USBSource) Close() error {
	_ = s.img.Close()
	return s.webcam.Close()
}

// StartAutomaticCapture opens the USB camera and starts streaming it.
func StartAutomaticCapture(ctx context.Context, cfg Config) (*Camera, error) {
	src, err := OpenUSB(cfg)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"camera": cfg.Name, "device": cfg.Device}).Println("Camera: capture started")
	return Start(ctx, cfg.Name, src, cfg.FPS), nil
}
