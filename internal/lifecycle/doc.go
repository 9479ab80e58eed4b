// Package lifecycle composes definition lookup, emulator launch, serial
// discovery and boot confirmation into one start/stop state machine per
// device.
//
// Usage:
//
//	lm := lifecycle.NewManager(lifecycle.Deps{...})
//	rec, err := lm.Start(ctx, lifecycle.Request{Name: "test_android_34", PlatformVersion: 34})
//	if err != nil {
//	    return err
//	}
//	defer lm.Stop(context.Background(), rec.Serial)
//
// Records move through starting -> running -> stopping -> stopped. A launch
// that fails while starting goes straight to stopped. Stopped records are
// removed from the Registry.
//
// Each Manager owns the Registry it was given. Concurrent starts of distinct
// definitions proceed independently. Starting the same definition twice is
// not deduplicated; callers that run parallel lanes of one definition should
// give each lane its own console port.
package lifecycle
