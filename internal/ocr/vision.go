package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/model"
)

const defaultVisionEndpoint = "https://api.ocr.space/v1"

// Vision extracts text with word-level bounding boxes from a hosted
// vision OCR API. Provider confidences arrive on a 0-100 scale and are
// rescaled to [0,1].
type Vision struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewVision creates a Vision extractor. If baseURL is empty, the
// default endpoint is used.
func NewVision(baseURL, apiKey string) *Vision {
	if baseURL == "" {
		baseURL = defaultVisionEndpoint
	}
	return &Vision{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type visionRequest struct {
	Document visionDocument `json:"document"`
	Detail   bool           `json:"detail"`
}

type visionDocument struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type visionResponse struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Words      []visionSpan `json:"words"`
	Lines      []visionSpan `json:"lines"`
}

type visionSpan struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"bbox"`
}

// Extract sends the artifact to the vision API and returns the
// recognized text with word and line detail. A local file path is
// inlined as a base64 data URL; an http(s) URL is passed through.
func (v *Vision) Extract(ctx context.Context, source string) (*model.OCRResult, error) {
	docURL := source
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: read artifact %s", source)
		}
		docURL = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(data)
	}

	body, err := json.Marshal(visionRequest{
		Document: visionDocument{Type: "image_url", URL: docURL},
		Detail:   true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal vision request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/recognize", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create vision request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: vision API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: read vision response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ocr: vision API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var vr visionResponse
	if err := json.Unmarshal(respBody, &vr); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal vision response")
	}

	return vr.toResult(), nil
}

func (vr *visionResponse) toResult() *model.OCRResult {
	res := &model.OCRResult{
		Text:       vr.Text,
		Confidence: model.NormalizeConfidence(vr.Confidence),
	}

	if len(vr.Words) == 0 && len(vr.Lines) == 0 {
		return res
	}

	detail := &model.OCRDetail{}
	var sum float64
	for _, w := range vr.Words {
		c := model.NormalizeConfidence(w.Confidence)
		sum += c
		detail.Words = append(detail.Words, model.OCRWord{
			Text:       w.Text,
			Confidence: c,
			Box:        model.BoundingBox{X: w.BBox.X, Y: w.BBox.Y, Width: w.BBox.Width, Height: w.BBox.Height},
		})
	}
	for _, l := range vr.Lines {
		detail.Lines = append(detail.Lines, model.OCRLine{
			Text:       l.Text,
			Confidence: model.NormalizeConfidence(l.Confidence),
			Box:        model.BoundingBox{X: l.BBox.X, Y: l.BBox.Y, Width: l.BBox.Width, Height: l.BBox.Height},
		})
	}
	res.Detail = detail

	// Some responses omit the overall score; derive it from word
	// confidences when available.
	if res.Confidence == 0 && len(detail.Words) > 0 {
		res.Confidence = sum / float64(len(detail.Words))
	}

	return res
}
