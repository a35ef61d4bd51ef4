package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxIntersects(t *testing.T) {
	box := BoundingBox{X: 10, Y: 10, Width: 20, Height: 10}

	tests := []struct {
		name string
		rect CropRect
		want bool
	}{
		{"fully contains box", CropRect{X: 0, Y: 0, Width: 100, Height: 100}, true},
		{"partial overlap", CropRect{X: 25, Y: 15, Width: 20, Height: 20}, true},
		{"touching edge counts", CropRect{X: 30, Y: 10, Width: 10, Height: 10}, true},
		{"right of box", CropRect{X: 31, Y: 10, Width: 10, Height: 10}, false},
		{"below box", CropRect{X: 10, Y: 21, Width: 10, Height: 10}, false},
		{"above box", CropRect{X: 10, Y: 0, Width: 10, Height: 9}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, box.Intersects(tc.rect))
		})
	}
}

func TestBoundingBoxIntersectsScaled(t *testing.T) {
	box := BoundingBox{X: 10, Y: 10, Width: 20, Height: 10}

	// Display coordinates at 2x map back into OCR pixel space.
	assert.True(t, box.Intersects(CropRect{X: 20, Y: 20, Width: 40, Height: 20, Scale: 2}))
	assert.False(t, box.Intersects(CropRect{X: 62, Y: 20, Width: 20, Height: 20, Scale: 2}))
}
