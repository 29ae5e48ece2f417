// Package gpu uploads models and their textures to OpenGL.
package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/objmesh/internal/engine/model"
	"github.com/Faultbox/objmesh/internal/engine/texture"
	"github.com/Faultbox/objmesh/internal/logger"
)

// Vertex attribute locations of uploaded models.
const (
	AttribPosition = 0
	AttribNormal   = 1
	AttribTexCoord = 2
)

// ErrEmptyImage is returned for textures without pixels.
var ErrEmptyImage = errors.New("texture image has no pixels")

// Config holds device configuration.
type Config struct {
	Anisotropy float32 // Max anisotropic filtering, 0 or 1 disables it
}

// Device creates textures and vertex buffers on the current GL context.
// It implements model.GPU.
type Device struct {
	config Config
	log    *zap.Logger
}

var _ model.GPU = (*Device)(nil)

// New initializes OpenGL. It must be called after a GL context is current.
func New(cfg Config) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	d := &Device{config: cfg, log: logger.Named("gpu")}
	d.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)
	return d, nil
}

// textureFormat returns the internal and pixel formats for a channel count.
func textureFormat(channels int) (internal int32, format uint32, err error) {
	switch channels {
	case 1:
		return gl.R8, gl.RED, nil
	case 3:
		return gl.RGB8, gl.RGB, nil
	case 4:
		return gl.RGBA8, gl.RGBA, nil
	}
	return 0, 0, fmt.Errorf("%w: %d", texture.ErrUnsupportedChannels, channels)
}

// CreateTexture uploads img with mipmaps and repeat wrapping.
func (d *Device) CreateTexture(img *texture.Image) (uint32, error) {
	internal, format, err := textureFormat(img.Channels)
	if err != nil {
		return 0, err
	}
	if img.Width <= 0 || img.Height <= 0 || len(img.Pixels) < img.Width*img.Height*img.Channels {
		return 0, fmt.Errorf("%w: %s", ErrEmptyImage, img.Filename)
	}

	var texID uint32
	gl.GenTextures(1, &texID)
	gl.BindTexture(gl.TEXTURE_2D, texID)

	// Rows of 1 and 3 channel images are not 4-byte aligned.
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(img.Width), int32(img.Height), 0,
		format, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pixels[0]))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)

	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	if d.config.Anisotropy > 1 {
		gl.TexParameterf(gl.TEXTURE_2D, gl.TEXTURE_MAX_ANISOTROPY, d.config.Anisotropy)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := checkError("uploading texture " + img.Filename); err != nil {
		gl.DeleteTextures(1, &texID)
		return 0, err
	}

	d.log.Debug("texture uploaded",
		zap.Uint32("id", texID),
		zap.String("file", img.Filename),
		zap.Int("channels", img.Channels))
	return texID, nil
}

// DeleteTexture releases a texture created by CreateTexture.
func (d *Device) DeleteTexture(id uint32) {
	gl.DeleteTextures(1, &id)
}

// CreateBuffers uploads the model's vertex and index buffers into a new VAO
// with positions, normals and texcoords in separate buffers.
func (d *Device) CreateBuffers(m *model.Model) (model.Buffers, error) {
	var b model.Buffers

	gl.GenVertexArrays(1, &b.VAO)
	gl.BindVertexArray(b.VAO)

	b.Positions = arrayBuffer(AttribPosition, 3, len(m.Positions)*12, vec3Ptr(m.Positions), gl.DYNAMIC_DRAW)
	b.Normals = arrayBuffer(AttribNormal, 3, len(m.Normals)*12, vec3Ptr(m.Normals), gl.STATIC_DRAW)

	var texCoords unsafe.Pointer
	if len(m.TexCoords) > 0 {
		texCoords = unsafe.Pointer(&m.TexCoords[0])
	}
	b.TexCoords = arrayBuffer(AttribTexCoord, 2, len(m.TexCoords)*8, texCoords, gl.STATIC_DRAW)

	var indices unsafe.Pointer
	if len(m.Indices) > 0 {
		indices = unsafe.Pointer(&m.Indices[0])
	}
	gl.GenBuffers(1, &b.Indices)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.Indices)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*4, indices, gl.STATIC_DRAW)

	gl.BindVertexArray(0)

	if err := checkError("uploading model " + m.Name); err != nil {
		d.DeleteBuffers(b)
		return model.Buffers{}, err
	}

	d.log.Debug("buffers uploaded",
		zap.String("model", m.Name),
		zap.Uint32("vao", b.VAO),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("indices", len(m.Indices)))
	return b, nil
}

// UpdatePositions replaces the contents of the position buffer.
func (d *Device) UpdatePositions(b model.Buffers, positions []mgl32.Vec3) error {
	if len(positions) == 0 {
		return nil
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.Positions)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(positions)*12, vec3Ptr(positions))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return checkError("updating positions")
}

// DeleteBuffers releases buffers created by CreateBuffers.
func (d *Device) DeleteBuffers(b model.Buffers) {
	buffers := []uint32{b.Positions, b.Normals, b.TexCoords, b.Indices}
	gl.DeleteBuffers(int32(len(buffers)), &buffers[0])
	if b.VAO != 0 {
		gl.DeleteVertexArrays(1, &b.VAO)
	}
}

// arrayBuffer creates a vertex buffer bound to attribute index of the current VAO.
func arrayBuffer(index uint32, size int32, bytes int, data unsafe.Pointer, usage uint32) uint32 {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.ARRAY_BUFFER, id)
	gl.BufferData(gl.ARRAY_BUFFER, bytes, data, usage)
	gl.VertexAttribPointerWithOffset(index, size, gl.FLOAT, false, 0, 0)
	gl.EnableVertexAttribArray(index)
	return id
}

func vec3Ptr(v []mgl32.Vec3) unsafe.Pointer {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Pointer(&v[0])
}

// checkError drains the GL error queue and reports the first error.
func checkError(op string) error {
	var first uint32
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		if first == 0 {
			first = code
		}
	}
	if first != 0 {
		return fmt.Errorf("%s: GL error 0x%04X", op, first)
	}
	return nil
}
