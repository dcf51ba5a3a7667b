//go:build !nogpu

package gpuinfo

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

func TestInspect_Noop(t *testing.T) {
	info, err := Inspect(&noop.API{})
	if err != nil {
		t.Fatalf("Inspect(noop) error = %v", err)
	}
	want := int(gputypes.DefaultLimits().MaxTextureDimension2D)
	if info.MaxTextureSize != want || want <= 0 {
		t.Errorf("MaxTextureSize = %d, want %d", info.MaxTextureSize, want)
	}
}

type failingAPI struct{}

func (failingAPI) CreateInstance(*hal.InstanceDescriptor) (hal.Instance, error) {
	return nil, errors.New("no loader")
}

type panickingAPI struct{}

func (panickingAPI) CreateInstance(*hal.InstanceDescriptor) (hal.Instance, error) {
	panic("driver crashed")
}

func TestInspect_NoAdapter(t *testing.T) {
	for name, api := range map[string]Instancer{
		"error": failingAPI{},
		"panic": panickingAPI{},
	} {
		if _, err := Inspect(api); !errors.Is(err, ErrNoAdapter) {
			t.Errorf("%s: Inspect() error = %v, want ErrNoAdapter", name, err)
		}
	}
}
