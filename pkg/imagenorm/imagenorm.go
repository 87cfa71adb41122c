// Package imagenorm shrinks photos before they are sent for identification.
package imagenorm

import (
	"bytes"
	"errors"
	"fmt"
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	TargetSize   = 1 << 20
	MaxDimension = 2048
	StartQuality = 85
	QualityStep  = 10
	MinQuality   = 30
)

var ErrImageProcessing = errors.New("image could not be processed")

type Result struct {
	Data      []byte
	Reencoded bool
	Quality   int
	Width     int
	Height    int
	Attempts  int
}

type Options struct {
	TargetSize   int
	MaxDimension int
}

func DefaultOptions() Options {
	return Options{TargetSize: TargetSize, MaxDimension: MaxDimension}
}

// Normalize returns data untouched when it already fits the target size.
// Otherwise the image is oriented, scaled to fit MaxDimension and encoded
// as JPEG, lowering the quality until it fits or reaches MinQuality.
func Normalize(data []byte) (*Result, error) {
	return NormalizeWithOptions(data, DefaultOptions())
}

func NormalizeWithOptions(data []byte, opts Options) (*Result, error) {

	if len(data) <= opts.TargetSize {
		return &Result{Data: data}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrImageProcessing, err)
	}

	b := img.Bounds()
	if b.Dx() > opts.MaxDimension || b.Dy() > opts.MaxDimension {
		img = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}

	res := &Result{
		Reencoded: true,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
	}

	var buf bytes.Buffer
	quality := StartQuality
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("%w: encode: %v", ErrImageProcessing, err)
		}
		res.Attempts++

		if buf.Len() <= opts.TargetSize || quality <= MinQuality {
			break
		}
		quality = max(quality-QualityStep, MinQuality)
	}

	res.Quality = quality
	res.Data = bytes.Clone(buf.Bytes())

	return res, nil

}
