// Package render draws derived regions onto frames for visual debugging.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/WesWeCan/mu-morphing-mirror/internal/regions"
	"gocv.io/x/gocv"
)

const (
	strokeWidth = 5
	labelOffset = 10
	fontScale   = 0.6
)

var (
	regionColor   = color.RGBA{R: 255, A: 255}
	combinedColor = color.RGBA{G: 255, A: 255}
)

// ErrEmptyImage is returned when a frame cannot be decoded.
var ErrEmptyImage = errors.New("empty or undecodable image")

// StrokeColor is green for the combined legs region and red for everything else.
func StrokeColor(label string) color.RGBA {
	if label == regions.LegsLabel {
		return combinedColor
	}
	return regionColor
}

// Rect converts a region to whole-pixel image coordinates.
func Rect(r regions.Region) image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.Right())), int(math.Round(r.Bottom())),
	)
}

// Draw strokes every region onto img with its label just above the box.
func Draw(img *gocv.Mat, rs []regions.Region) {
	for _, r := range rs {
		c := StrokeColor(r.Label)
		rect := Rect(r)
		gocv.Rectangle(img, rect, c, strokeWidth)
		gocv.PutText(img, r.Label, image.Pt(rect.Min.X, rect.Min.Y-labelOffset),
			gocv.FontHersheySimplex, fontScale, c, 2)
	}
}

// DrawJPEG decodes a JPEG frame, draws the regions and re-encodes it.
func DrawJPEG(frame []byte, rs []regions.Region) ([]byte, error) {
	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrEmptyImage
	}

	Draw(&img, rs)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// DrawFile reads an image from disk, draws the regions and writes the result to out.
func DrawFile(in, out string, rs []regions.Region) error {
	img := gocv.IMRead(in, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return fmt.Errorf("%s: %w", in, ErrEmptyImage)
	}

	Draw(&img, rs)

	if !gocv.IMWrite(out, img) {
		return fmt.Errorf("failed to write %s", out)
	}
	return nil
}
