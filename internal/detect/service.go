package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

const (
	defaultServiceURL = "http://localhost:8000"
	jpegQuality       = 90
)

// ServiceClient detects faces through the face embedding HTTP service.
type ServiceClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewServiceClient creates a new service client. model is passed to the
// service as the detection variant ("cnn" or "hog").
func NewServiceClient(baseURL, model string) *ServiceClient {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &ServiceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

// faceDetection represents a single detected face
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postImage posts the JPEG as a multipart form to the given endpoint.
func (c *ServiceClient) postImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	target := c.baseURL + endpoint
	if c.model != "" {
		target += "?" + url.Values{"model": {c.model}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Detect sends the frame to the service and returns the faces it found.
func (c *ServiceClient) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	data, err := EncodeJPEG(img, jpegQuality)
	if err != nil {
		return nil, err
	}

	body, err := c.postImage(ctx, "/embed/face", data)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	faces := make([]Face, 0, len(faceResp.Faces))
	for _, d := range faceResp.Faces {
		if len(d.Embedding) == 0 {
			continue
		}
		faces = append(faces, Face{
			Box:      bboxToRect(d.BBox),
			Encoding: d.Embedding,
			Score:    d.DetScore,
		})
	}
	return faces, nil
}

// Close is a no-op; the HTTP client holds no resources worth releasing.
func (c *ServiceClient) Close() error {
	return nil
}

// Model returns the detection variant requested from the service
func (c *ServiceClient) Model() string {
	return c.model
}

func bboxToRect(b []float64) image.Rectangle {
	if len(b) < 4 {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Round(b[0])), int(math.Round(b[1])),
		int(math.Round(b[2])), int(math.Round(b[3])),
	)
}
