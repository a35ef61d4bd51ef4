package model

// BoundingBox is a rectangle in image pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OCRWord is a single recognized word with its confidence and location.
type OCRWord struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// OCRLine is a recognized line of text composed of words.
type OCRLine struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// OCRDetail carries word- and line-level recognition output for a frame.
// All confidences are normalized to [0,1].
type OCRDetail struct {
	Words []OCRWord `json:"words,omitempty"`
	Lines []OCRLine `json:"lines,omitempty"`
}

// OCRResult is the full output of one extraction call.
type OCRResult struct {
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	Detail     *OCRDetail `json:"detail,omitempty"`
}

// Intersects reports whether the box overlaps the given crop rectangle.
// Rect coordinates are divided by rect.Scale (when set) to bring them
// into the same space as OCR pixel coordinates.
func (b BoundingBox) Intersects(rect CropRect) bool {
	scale := rect.Scale
	if scale == 0 {
		scale = 1
	}
	rx := rect.X / scale
	ry := rect.Y / scale
	rw := rect.Width / scale
	rh := rect.Height / scale

	if float64(b.X+b.Width) < rx || float64(b.X) > rx+rw {
		return false
	}
	if float64(b.Y+b.Height) < ry || float64(b.Y) > ry+rh {
		return false
	}
	return true
}
