package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrImageTooSmall = errors.New("imaging: image too small for grid")

// Decode parses PNG, JPEG, GIF or WebP bytes.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	return img, nil
}

// CellRect returns the crop rectangle of cell i (row-major) when bounds is
// divided into rows×cols equal cells. Remainder pixels on the right and bottom
// edges are dropped.
func CellRect(bounds image.Rectangle, rows, cols, i int) image.Rectangle {
	cellW := bounds.Dx() / cols
	cellH := bounds.Dy() / rows
	row, col := i/cols, i%cols
	return image.Rect(
		bounds.Min.X+col*cellW,
		bounds.Min.Y+row*cellH,
		bounds.Min.X+(col+1)*cellW,
		bounds.Min.Y+(row+1)*cellH,
	)
}

// SplitGrid crops an encoded image into rows×cols PNG cells in row-major
// order. Cells are copied pixel for pixel; nothing is resampled.
func SplitGrid(data []byte, rows, cols int) ([][]byte, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("imaging: invalid grid %dx%d", rows, cols)
	}
	src, err := Decode(data)
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	if bounds.Dx() < cols || bounds.Dy() < rows {
		return nil, fmt.Errorf("%w: %dx%d into %dx%d", ErrImageTooSmall, bounds.Dx(), bounds.Dy(), rows, cols)
	}

	cells := make([][]byte, 0, rows*cols)
	for i := 0; i < rows*cols; i++ {
		r := CellRect(bounds, rows, cols, i)
		cell := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		draw.Draw(cell, cell.Bounds(), src, r.Min, draw.Src)

		var buf bytes.Buffer
		if err := png.Encode(&buf, cell); err != nil {
			return nil, fmt.Errorf("imaging: encode cell %d: %w", i, err)
		}
		cells = append(cells, buf.Bytes())
	}
	return cells, nil
}
