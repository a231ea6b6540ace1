package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultCellSize      = 512
	DefaultMargin        = 10
	DefaultJPEGQuality   = 85
	MaxGalleryThumbnails = 6
)

var ErrNoImages = errors.New("imaging: no images to compose")

// DefaultBackground is the light gray canvas behind thumbnails.
var DefaultBackground = color.RGBA{R: 240, G: 240, B: 240, A: 255}

var badgeColor = color.RGBA{A: 170}

// Thumbnail is one gallery entry: encoded image bytes and the label stamped
// in its top-left corner.
type Thumbnail struct {
	Label string
	Data  []byte
}

// GalleryOptions tunes ComposeGallery. Zero values select the defaults.
type GalleryOptions struct {
	CellSize   int
	Margin     int
	Quality    int
	Background color.Color
}

func (o GalleryOptions) withDefaults() GalleryOptions {
	if o.CellSize <= 0 {
		o.CellSize = DefaultCellSize
	}
	if o.Margin < 0 || 2*o.Margin >= o.CellSize {
		o.Margin = DefaultMargin
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultJPEGQuality
	}
	if o.Background == nil {
		o.Background = DefaultBackground
	}
	return o
}

// GalleryLayout picks the grid for n thumbnails: one row for up to two,
// 2×2 for up to four, 3×2 otherwise.
func GalleryLayout(n int) (cols, rows int) {
	switch {
	case n <= 0:
		return 0, 0
	case n <= 2:
		return n, 1
	case n <= 4:
		return 2, 2
	default:
		return 3, 2
	}
}

// ComposeGallery lays out up to MaxGalleryThumbnails thumbnails on a single
// JPEG canvas. Entries beyond the sixth are left out. Entries that fail to
// decode leave their cell empty.
func ComposeGallery(thumbs []Thumbnail, opts GalleryOptions) ([]byte, error) {
	if len(thumbs) == 0 {
		return nil, ErrNoImages
	}
	if len(thumbs) > MaxGalleryThumbnails {
		thumbs = thumbs[:MaxGalleryThumbnails]
	}
	opts = opts.withDefaults()

	cols, rows := GalleryLayout(len(thumbs))
	canvas := image.NewRGBA(image.Rect(0, 0, cols*opts.CellSize, rows*opts.CellSize))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: opts.Background}, image.Point{}, draw.Src)

	inner := opts.CellSize - 2*opts.Margin
	placed := 0
	for idx, thumb := range thumbs {
		src, err := Decode(thumb.Data)
		if err != nil {
			continue
		}
		w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), inner)
		row, col := idx/cols, idx%cols
		x := col*opts.CellSize + opts.Margin + (inner-w)/2
		y := row*opts.CellSize + opts.Margin + (inner-h)/2
		dst := image.Rect(x, y, x+w, y+h)

		if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
			draw.Draw(canvas, dst, src, src.Bounds().Min, draw.Over)
		} else {
			draw.CatmullRom.Scale(canvas, dst, src, src.Bounds(), draw.Over, nil)
		}
		drawLabel(canvas, image.Pt(x+5, y+5), thumb.Label)
		placed++
	}
	if placed == 0 {
		return nil, ErrNoImages
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("imaging: encode gallery: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales w×h down to fit a box×box square, keeping the aspect
// ratio. Images that already fit are left at their size.
func fitWithin(w, h, box int) (int, int) {
	if w <= box && h <= box {
		return w, h
	}
	if w >= h {
		nh := h * box / w
		if nh < 1 {
			nh = 1
		}
		return box, nh
	}
	nw := w * box / h
	if nw < 1 {
		nw = 1
	}
	return nw, box
}

func drawLabel(dst draw.Image, at image.Point, label string) {
	if label == "" {
		return
	}
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.White, Face: face}
	textW := d.MeasureString(label).Ceil()
	metrics := face.Metrics()
	textH := (metrics.Ascent + metrics.Descent).Ceil()

	badge := image.Rect(at.X, at.Y, at.X+textW+8, at.Y+textH+6)
	draw.Draw(dst, badge, &image.Uniform{C: badgeColor}, image.Point{}, draw.Over)

	d.Dot = fixed.P(at.X+4, at.Y+3+metrics.Ascent.Ceil())
	d.DrawString(label)
}
