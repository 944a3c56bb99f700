package video

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"occupancy-service/internal/domain/occupancy"
)

// maxConsecutiveReadErrors is how many bad reads in a row mark the
// stream broken and force a reopen.
const maxConsecutiveReadErrors = 10

// RTSPSource reads an RTSP (or any OpenCV-supported) stream and hands
// out JPEG-encoded frames. Owned by a single camera worker.
type RTSPSource struct {
	cameraID string
	url      string
	capture  *gocv.VideoCapture
	errCount int
	log      zerolog.Logger
}

// NewRTSPSource creates an unopened source for the camera URL.
func NewRTSPSource(cameraID, url string, log zerolog.Logger) *RTSPSource {
	return &RTSPSource{
		cameraID: cameraID,
		url:      url,
		log:      log.With().Str("camera_id", cameraID).Logger(),
	}
}

// Open connects to the stream, releasing any previous capture first.
func (s *RTSPSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.capture != nil {
		s.capture.Close()
		s.capture = nil
	}

	capture, err := gocv.OpenVideoCapture(s.url)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, s.url, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: stream %s not opened", ErrSourceUnavailable, s.url)
	}
	// Minimal internal buffering keeps the feed live rather than lagged.
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	s.capture = capture
	s.errCount = 0
	s.log.Info().Str("url", s.url).Msg("video stream opened")
	return nil
}

// Next reads and JPEG-encodes one frame.
func (s *RTSPSource) Next(ctx context.Context) (occupancy.Frame, error) {
	if err := ctx.Err(); err != nil {
		return occupancy.Frame{}, err
	}
	if s.capture == nil || !s.capture.IsOpened() {
		return occupancy.Frame{}, fmt.Errorf("%w: stream not open", ErrSourceUnavailable)
	}

	img := gocv.NewMat()
	defer img.Close()

	for {
		if err := ctx.Err(); err != nil {
			return occupancy.Frame{}, err
		}
		if ok := s.capture.Read(&img); ok && !img.Empty() {
			break
		}
		s.errCount++
		if s.errCount >= maxConsecutiveReadErrors {
			s.log.Warn().Int("consecutive_errors", s.errCount).Msg("video stream broken")
			return occupancy.Frame{}, fmt.Errorf("%w: %d consecutive read failures", ErrSourceUnavailable, s.errCount)
		}
		time.Sleep(100 * time.Millisecond)
	}
	s.errCount = 0

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return occupancy.Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return occupancy.Frame{
		Data:      data,
		Width:     img.Cols(),
		Height:    img.Rows(),
		Timestamp: time.Now(),
	}, nil
}

// Close releases the capture; idempotent.
func (s *RTSPSource) Close() error {
	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	s.log.Info().Msg("video stream released")
	return err
}
