package media

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"

	xdraw "golang.org/x/image/draw"
)

// ThumbnailMaxSide bounds the longer edge of generated thumbnails.
const ThumbnailMaxSide = 320

const thumbnailQuality = 82

// Thumbnail decodes r and encodes a JPEG no larger than maxSide on either edge.
func Thumbnail(r io.Reader, maxSide int) ([]byte, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, resizeToFit(src, maxSide), &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resizeToFit(src image.Image, maxSide int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxSide && h <= maxSide) {
		return src
	}

	scale := float64(maxSide) / float64(max(w, h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}
