// Package client talks to the external person-detection service. The
// detector runs out of process (typically a Python inference server in
// front of a YOLO model); this client posts encoded frames and decodes
// the returned bounding boxes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"occupancy-service/internal/domain/occupancy"
)

// DetectorClient is stateless per call and safe for concurrent use by
// multiple camera workers.
type DetectorClient struct {
	baseURL    string
	confidence float64
	httpClient *http.Client
	log        zerolog.Logger
}

// NewDetectorClient creates a client for the inference service at
// baseURL. confidence is the minimum score forwarded to the detector.
func NewDetectorClient(baseURL string, timeout time.Duration, confidence float64, log zerolog.Logger) *DetectorClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DetectorClient{
		baseURL:    baseURL,
		confidence: confidence,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type detectionResponse struct {
	Detections []struct {
		X1         float64 `json:"x1"`
		Y1         float64 `json:"y1"`
		X2         float64 `json:"x2"`
		Y2         float64 `json:"y2"`
		Confidence float64 `json:"confidence"`
	} `json:"detections"`
}

// Detect posts the JPEG frame and returns person bounding boxes in
// pixel coordinates.
func (c *DetectorClient) Detect(ctx context.Context, frame occupancy.Frame) ([]occupancy.Detection, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	imageWriter, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create image form field: %w", err)
	}
	if _, err := imageWriter.Write(frame.Data); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.WriteField("confidence", fmt.Sprintf("%.2f", c.confidence)); err != nil {
		return nil, fmt.Errorf("write confidence field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/detect", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("create detect request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send detect request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read detect response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed detectionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}

	detections := make([]occupancy.Detection, 0, len(parsed.Detections))
	for _, d := range parsed.Detections {
		detections = append(detections, occupancy.Detection{
			BBox:       occupancy.BoundingBox{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2},
			Confidence: d.Confidence,
		})
	}
	c.log.Debug().Int("detections", len(detections)).Msg("detector response")
	return detections, nil
}

// Health checks the detector service.
func (c *DetectorClient) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send health request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detector health returned status %d", resp.StatusCode)
	}
	return nil
}
