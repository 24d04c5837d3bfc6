package resize

import (
	"github.com/go-faster/errors"
	"github.com/h2non/bimg"
)

var _ ImageProcessor = (*VipsProcessor)(nil)

// VipsProcessor implements ImageProcessor on libvips via bimg. It preserves
// the source encoding and re-encodes at quality 85.
type VipsProcessor struct{}

// NewVipsProcessor returns a libvips-backed processor.
func NewVipsProcessor() *VipsProcessor { return &VipsProcessor{} }

// Size reports the pixel dimensions of an encoded image.
func (*VipsProcessor) Size(buf []byte) (int, int, error) {
	size, err := bimg.NewImage(buf).Size()
	if err != nil {
		return 0, 0, errors.Wrap(err, "read image size")
	}
	return size.Width, size.Height, nil
}

// Resize re-encodes the image at the given dimensions. Force keeps the exact
// requested dimensions rather than letting libvips preserve aspect ratio.
func (*VipsProcessor) Resize(buf []byte, width, height int) ([]byte, error) {
	out, err := bimg.NewImage(buf).Process(bimg.Options{
		Width:   width,
		Height:  height,
		Force:   true,
		Quality: 85,
	})
	if err != nil {
		return nil, errors.Wrap(err, "process image")
	}
	return out, nil
}
