package sim

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
)

var ErrInvalidSize = errors.New("sim: invalid thumbnail size")

// Thumbnails renders a gradient PNG. When Async is set the callback runs on its own goroutine.
type Thumbnails struct {
	Async    bool
	captures atomic.Int32
}

func (t *Thumbnails) Capture(width, height int, done func(png []byte, err error)) {
	t.captures.Add(1)
	if !t.Async {
		done(render(width, height))
		return
	}
	go func() {
		done(render(width, height))
	}()
}

// Captures counts Capture calls.
func (t *Thumbnails) Captures() int { return int(t.captures.Load()) }

func render(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / width), G: uint8(y * 255 / height), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
