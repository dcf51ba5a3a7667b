//go:build !nogpu

// Package gpuinfo queries the graphics adapter for the limits that bound
// tile sizes.
package gpuinfo

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Instancer creates HAL instances. Registered hal backends and the noop API
// satisfy it.
type Instancer interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Detect queries the Vulkan adapter of this host.
func Detect() (Info, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return Info{}, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	return Inspect(backend)
}

// Inspect opens the preferred adapter of api with the WebGPU default limits
// and reports them. The device is released before Inspect returns.
func Inspect(api Instancer) (info Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrNoAdapter, r)
		}
	}()

	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return Info{}, fmt.Errorf("%w: create instance: %w", ErrNoAdapter, err)
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return Info{}, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		return Info{}, fmt.Errorf("gpuinfo: open device: %w", err)
	}
	openDev.Device.Destroy()

	return Info{
		Name:           selected.Info.Name,
		Integrated:     selected.Info.DeviceType == gputypes.DeviceTypeIntegratedGPU,
		MaxTextureSize: int(limits.MaxTextureDimension2D),
	}, nil
}
