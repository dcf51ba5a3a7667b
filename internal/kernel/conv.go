package kernel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/upscale/internal/tensor"
)

// Weight blob layout for the Conv backend (little-endian):
//
//	offset 0  [4]byte  magic "USRW"
//	offset 4  uint16   version (1)
//	offset 6  uint8    scale s
//	offset 7  uint8    kernel size k (odd)
//	offset 8  float32  weights [3*s*s][3][k][k]
//	...       float32  bias    [3*s*s]
const (
	convMagic      = "USRW"
	convVersion    = 1
	convHeaderSize = 8
)

var errWeights = errors.New("malformed conv weights")

// Conv is a sub-pixel convolution model: a single k x k convolution maps the
// three input planes to 3*s*s planes, which are then shuffled into an image s
// times larger. Output channel c*s*s + i*s + j becomes sub-pixel (j, i) of
// color c.
type Conv struct{}

// Name implements Backend.
func (Conv) Name() string { return "conv" }

// Init implements Backend.
func (Conv) Init(weights []byte, cfg Config) (Session, error) {
	m, err := ParseConvWeights(weights)
	if err != nil {
		return nil, err
	}
	if m.Scale != cfg.Scale {
		return nil, fmt.Errorf("%w: weights are x%d, model declares x%d", errWeights, m.Scale, cfg.Scale)
	}
	if m.KernelSize > cfg.TileSize {
		return nil, fmt.Errorf("%w: kernel %d larger than tile %d", errWeights, m.KernelSize, cfg.TileSize)
	}
	return &convSession{cfg: cfg, model: m}, nil
}

// ConvWeights is the decoded form of a Conv weight blob.
type ConvWeights struct {
	Scale      int
	KernelSize int
	Weights    []float32 // [3*s*s][3][k][k]
	Bias       []float32 // [3*s*s]
}

func (m *ConvWeights) outChannels() int {
	return tensor.Channels * m.Scale * m.Scale
}

// ParseConvWeights decodes and validates a Conv weight blob.
func ParseConvWeights(blob []byte) (*ConvWeights, error) {
	if len(blob) < convHeaderSize || string(blob[:4]) != convMagic {
		return nil, fmt.Errorf("%w: bad header", errWeights)
	}
	if v := binary.LittleEndian.Uint16(blob[4:6]); v != convVersion {
		return nil, fmt.Errorf("%w: version %d", errWeights, v)
	}
	m := &ConvWeights{Scale: int(blob[6]), KernelSize: int(blob[7])}
	if m.Scale < 1 || m.KernelSize < 1 || m.KernelSize%2 == 0 {
		return nil, fmt.Errorf("%w: scale %d, kernel %d", errWeights, m.Scale, m.KernelSize)
	}

	oc := m.outChannels()
	nw := oc * tensor.Channels * m.KernelSize * m.KernelSize
	want := convHeaderSize + 4*(nw+oc)
	if len(blob) != want {
		return nil, fmt.Errorf("%w: %d bytes, want %d", errWeights, len(blob), want)
	}

	vals := make([]float32, nw+oc)
	if err := binary.Read(bytes.NewReader(blob[convHeaderSize:]), binary.LittleEndian, vals); err != nil {
		return nil, fmt.Errorf("%w: %w", errWeights, err)
	}
	for i, v := range vals {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: non-finite value at %d", errWeights, i)
		}
	}
	m.Weights, m.Bias = vals[:nw], vals[nw:]
	return m, nil
}

// Encode serializes m into the Conv blob format.
func (m *ConvWeights) Encode() ([]byte, error) {
	oc := m.outChannels()
	if len(m.Weights) != oc*tensor.Channels*m.KernelSize*m.KernelSize || len(m.Bias) != oc {
		return nil, fmt.Errorf("%w: %d weights, %d biases for x%d k%d", errWeights, len(m.Weights), len(m.Bias), m.Scale, m.KernelSize)
	}
	var buf bytes.Buffer
	buf.WriteString(convMagic)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(convVersion))
	buf.WriteByte(byte(m.Scale))
	buf.WriteByte(byte(m.KernelSize))
	_ = binary.Write(&buf, binary.LittleEndian, m.Weights)
	_ = binary.Write(&buf, binary.LittleEndian, m.Bias)
	return buf.Bytes(), nil
}

// IdentityConvWeights returns weights that reproduce nearest-neighbour
// upscaling: every sub-pixel copies the centre tap of its own color.
func IdentityConvWeights(scale, kernelSize int) *ConvWeights {
	m := &ConvWeights{Scale: scale, KernelSize: kernelSize}
	oc := m.outChannels()
	kk := kernelSize * kernelSize
	m.Weights = make([]float32, oc*tensor.Channels*kk)
	m.Bias = make([]float32, oc)
	centre := (kernelSize/2)*kernelSize + kernelSize/2
	for o := range oc {
		c := o / (scale * scale)
		m.Weights[(o*tensor.Channels+c)*kk+centre] = 1
	}
	return m
}

type convSession struct {
	cfg   Config
	model *ConvWeights
}

func (s *convSession) Run(in, out *tensor.Tensor) error {
	t, scale := s.cfg.TileSize, s.cfg.Scale
	k := s.model.KernelSize
	r := k / 2
	kk := k * k
	side := t * scale
	planes := [tensor.Channels][]float32{in.Plane(0), in.Plane(1), in.Plane(2)}

	for o := range s.model.outChannels() {
		c := o / (scale * scale)
		sub := o % (scale * scale)
		si, sj := sub/scale, sub%scale
		dst := out.Plane(c)
		w := s.model.Weights[o*tensor.Channels*kk : (o+1)*tensor.Channels*kk]
		bias := s.model.Bias[o]

		for y := range t {
			for x := range t {
				sum := bias
				for ic, plane := range planes {
					wk := w[ic*kk : (ic+1)*kk]
					for ky := range k {
						yy := min(max(y+ky-r, 0), t-1)
						row := plane[yy*t : (yy+1)*t]
						for kx := range k {
							xx := min(max(x+kx-r, 0), t-1)
							sum += wk[ky*k+kx] * row[xx]
						}
					}
				}
				dst[(y*scale+si)*side+x*scale+sj] = sum
			}
		}
	}
	return nil
}

func (s *convSession) Close() error { return nil }
