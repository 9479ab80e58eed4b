package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Iron-Ham/droidbench/internal/runner/runnertest"
)

func TestDeviceInfo(t *testing.T) {
	fake := runnertest.New()
	fake.OnStdout("ro.product.model", "sdk_gphone64_arm64\n")
	fake.OnStdout("ro.product.manufacturer", "Google\n")
	fake.OnStdout("ro.build.version.release", "14\n")
	fake.OnStdout("ro.build.version.sdk", "34\n")
	fake.OnExit("ro.build.id", 1, "")
	fake.OnStdout("wm size", "Physical size: 1080x2400\n")
	fake.OnStdout("wm density", "Physical density: 420\n")

	info := newTestEngine(fake).DeviceInfo(context.Background(), "emulator-5554")
	assert.Equal(t, DeviceInfo{
		Serial:           "emulator-5554",
		Model:            "sdk_gphone64_arm64",
		Manufacturer:     "Google",
		AndroidVersion:   "14",
		APILevel:         "34",
		ScreenResolution: "1080x2400",
		ScreenDensity:    "420",
	}, info)
}

func TestExecuteShell_Root(t *testing.T) {
	fake := runnertest.New()
	e := newTestEngine(fake)

	e.ExecuteShell(context.Background(), "svc wifi disable", "emulator-5554", true)
	e.SetProperty(context.Background(), "debug.test", "1", "emulator-5554")

	assert.Equal(t, []string{
		"adb -s emulator-5554 shell su -c 'svc wifi disable'",
		"adb -s emulator-5554 shell su -c 'setprop debug.test 1'",
	}, fake.Calls())
}

func TestCheckAvailability(t *testing.T) {
	fake := runnertest.New()
	fake.OnStdout("which pm", "/system/bin/pm\n")
	fake.OnStdout("which nope", "")
	fake.OnExit("install --help", 1, "")
	fake.OnExit("install -h", 1, "")
	e := newTestEngine(fake)
	ctx := context.Background()

	assert.True(t, e.CheckAvailability(ctx, "shell pm list packages", "emulator-5554"))
	assert.False(t, e.CheckAvailability(ctx, "shell nope", "emulator-5554"))
	assert.True(t, e.CheckAvailability(ctx, "install app.apk", "emulator-5554"))
	assert.False(t, e.CheckAvailability(ctx, "", "emulator-5554"))
}

func TestListPackages(t *testing.T) {
	fake := runnertest.New().OnStdout("pm list packages -3", "package:com.example.app\r\npackage:org.test\n\n")
	e := newTestEngine(fake)

	assert.Equal(t, []string{"com.example.app", "org.test"}, e.ListPackages(context.Background(), "emulator-5554", ThirdPartyPackages))
}

func TestHelperCommandLines(t *testing.T) {
	fake := runnertest.New()
	e := newTestEngine(fake)
	ctx := context.Background()
	const s = "emulator-5554"

	e.InstallAPK(ctx, "/tmp/my app.apk", s, true)
	e.InstallAPK(ctx, "app.apk", s, false)
	e.Uninstall(ctx, "com.example", s)
	e.Push(ctx, "local.txt", "/sdcard/local.txt", s)
	e.Pull(ctx, "/sdcard/out.txt", "out.txt", s)
	e.Forward(ctx, 8080, 80, s)
	e.Reverse(ctx, 9000, 9001, s)
	e.Logcat(ctx, s, 50, "ActivityManager:I *:S")
	e.ClearLogcat(ctx, s)
	e.Reboot(ctx, s, "")
	e.Reboot(ctx, s, "recovery")

	assert.Equal(t, []string{
		"adb -s emulator-5554 install -r '/tmp/my app.apk'",
		"adb -s emulator-5554 install app.apk",
		"adb -s emulator-5554 uninstall com.example",
		"adb -s emulator-5554 push local.txt /sdcard/local.txt",
		"adb -s emulator-5554 pull /sdcard/out.txt out.txt",
		"adb -s emulator-5554 forward tcp:8080 tcp:80",
		"adb -s emulator-5554 reverse tcp:9000 tcp:9001",
		"adb -s emulator-5554 logcat -d -t 50 ActivityManager:I *:S",
		"adb -s emulator-5554 logcat -c",
		"adb -s emulator-5554 reboot",
		"adb -s emulator-5554 reboot recovery",
	}, fake.Calls())
}

func TestGetProperty(t *testing.T) {
	fake := runnertest.New()
	fake.OnStdout("getprop ro.kernel.qemu", "1\n")
	fake.OnExit("getprop broken", 1, "")
	e := newTestEngine(fake)

	v, ok := e.GetProperty(context.Background(), "ro.kernel.qemu", "emulator-5554")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = e.GetProperty(context.Background(), "broken", "emulator-5554")
	assert.False(t, ok)
}
