package emulator

import (
	"strconv"

	"github.com/Iron-Ham/droidbench/internal/validate"
)

// GPU modes accepted by the emulator's -gpu flag.
var GPUModes = []string{"auto", "host", "swiftshader_indirect", "angle_indirect", "guest", "off"}

// Options controls how an emulator process is launched.
type Options struct {
	// Headless disables the window, audio and boot animation.
	Headless bool
	// Port is the console port. Zero lets the emulator pick one.
	Port int `validate:"omitempty,min=5554,max=5682,even"`
	// Snapshot names a snapshot to boot from.
	Snapshot string
	// MemoryMB is the guest RAM size. Zero keeps the definition's hw.ramSize.
	MemoryMB int `validate:"omitempty,min=512"`
	// GPUMode is passed through to -gpu. Empty leaves the emulator's choice.
	GPUMode string `validate:"omitempty,oneof=auto host swiftshader_indirect angle_indirect guest off"`
}

// DefaultOptions returns headless launch options with 2 GiB of RAM and
// automatic GPU selection.
func DefaultOptions() Options {
	return Options{
		Headless: true,
		MemoryMB: 2048,
		GPUMode:  "auto",
	}
}

// Validate reports every invalid field.
func (o Options) Validate() error {
	return validate.Struct(o)
}

// Args builds the emulator argv for the named definition.
func (o Options) Args(name string) []string {
	args := []string{"-avd", name}
	if o.Headless {
		args = append(args, "-no-window", "-no-audio", "-no-boot-anim")
	}
	if o.Port > 0 {
		args = append(args, "-port", strconv.Itoa(o.Port))
	}
	if o.Snapshot != "" {
		args = append(args, "-snapshot", o.Snapshot)
	}
	args = append(args, "-no-snapshot-save", "-accel", "on")
	if o.GPUMode != "" {
		args = append(args, "-gpu", o.GPUMode)
	}
	if o.MemoryMB > 0 {
		args = append(args, "-memory", strconv.Itoa(o.MemoryMB))
	}
	return args
}

// SerialForPort returns the adb serial an emulator listening on the given
// console port registers under.
func SerialForPort(port int) string {
	return "emulator-" + strconv.Itoa(port)
}
