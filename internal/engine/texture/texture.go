// Package texture provides image decoding for material texture maps.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// Texture loading errors.
var (
	ErrMissingTexture      = errors.New("missing or unreadable texture file")
	ErrUnsupportedChannels = errors.New("unsupported texture channel count")
	ErrUnsupportedFormat   = errors.New("unsupported texture image format")
)

// Image is a decoded texture with tightly packed 8-bit channels, rows top to bottom.
type Image struct {
	Directory string
	Filename  string
	Width     int
	Height    int
	Channels  int // 1 (red), 3 (RGB) or 4 (RGBA)
	Pixels    []byte
}

// Loader loads texture images for materials.
type Loader interface {
	Load(directory, filename string, channels int) (*Image, error)
}

// FileLoader loads textures from the local filesystem.
type FileLoader struct{}

// Load reads directory/filename and converts it to the requested channel count.
func (FileLoader) Load(directory, filename string, channels int) (*Image, error) {
	if !SupportedChannels(channels) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}

	path := filepath.Join(directory, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingTexture, path, err)
	}

	img, err := Decode(data, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMissingTexture, path, err)
	}

	out, err := FromImage(img, channels)
	if err != nil {
		return nil, err
	}
	out.Directory = directory
	out.Filename = filename
	return out, nil
}

// SupportedChannels reports whether textures can be built with n channels.
func SupportedChannels(n int) bool {
	return n == 1 || n == 3 || n == 4
}

// Decode decodes image data, choosing the decoder from the file extension.
func Decode(data []byte, filename string) (image.Image, error) {
	r := bytes.NewReader(data)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return png.Decode(r)
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".gif":
		return gif.Decode(r)
	case ".bmp":
		return bmp.Decode(r)
	case ".webp":
		return webp.Decode(r)
	case ".tga":
		return tga.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// FromImage converts any image.Image to packed pixels with the given channel count.
// Single-channel textures keep the red channel.
func FromImage(img image.Image, channels int) (*Image, error) {
	if !SupportedChannels(channels) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 0, width*height*channels)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			switch channels {
			case 1:
				pixels = append(pixels, c.R)
			case 3:
				pixels = append(pixels, c.R, c.G, c.B)
			case 4:
				pixels = append(pixels, c.R, c.G, c.B, c.A)
			}
		}
	}

	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pixels:   pixels,
	}, nil
}
