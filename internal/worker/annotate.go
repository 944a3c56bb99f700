package worker

import (
	"fmt"
	"image"
	"image/color"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"occupancy-service/internal/domain/occupancy"
)

var (
	boxColor   = color.RGBA{G: 255}
	textColor  = color.RGBA{R: 255, G: 255, B: 255}
	panelColor = color.RGBA{}
)

// FrameAnnotator draws track boxes, track ids and the IN/OUT/OCC
// overlay onto frames with OpenCV.
type FrameAnnotator struct {
	log zerolog.Logger
}

// NewFrameAnnotator returns the OpenCV-backed annotator.
func NewFrameAnnotator(log zerolog.Logger) *FrameAnnotator {
	return &FrameAnnotator{log: log}
}

// Annotate decodes the JPEG frame, draws, and re-encodes. On any
// drawing or codec error the unannotated frame is returned, so the
// live feed keeps flowing.
func (a *FrameAnnotator) Annotate(frame occupancy.Frame, tracks []occupancy.Track, counts occupancy.Counts) occupancy.Frame {
	img, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		a.log.Warn().Err(err).Msg("failed to decode frame for annotation")
		return frame
	}
	defer img.Close()

	for _, track := range tracks {
		rect := image.Rect(int(track.BBox.X1), int(track.BBox.Y1), int(track.BBox.X2), int(track.BBox.Y2))
		gocv.Rectangle(&img, rect, boxColor, 2)

		labelY := int(track.BBox.Y1) - 5
		if labelY < 0 {
			labelY = 0
		}
		gocv.PutText(&img, fmt.Sprintf("ID %d", track.ID),
			image.Pt(int(track.BBox.X1), labelY),
			gocv.FontHersheySimplex, 0.5, boxColor, 1)
	}

	overlay := fmt.Sprintf("IN: %d OUT: %d OCC: %d", counts.Entered, counts.Exited, counts.Current)
	gocv.Rectangle(&img, image.Rect(10, 10, 280, 40), panelColor, -1)
	gocv.PutText(&img, overlay, image.Pt(15, 32), gocv.FontHersheySimplex, 0.7, textColor, 2)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to encode annotated frame")
		return frame
	}
	defer buf.Close()

	out := frame
	out.Data = make([]byte, buf.Len())
	copy(out.Data, buf.GetBytes())
	return out
}
