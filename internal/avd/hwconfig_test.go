package avd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHWConfig_MergePreservesUnrelatedLines(t *testing.T) {
	in := strings.Join([]string{
		"AvdId=test_android_34",
		"# comment without equals sign",
		"hw.ramSize=1536",
		"image.sysdir.1=system-images/android-34/google_apis/arm64-v8a/",
		"hw.keyboard = no",
		"",
		"hw.lcd.density=440",
	}, "\n")

	cfg, err := ParseHWConfig(strings.NewReader(in))
	require.NoError(t, err)

	cfg.Merge(Settings{MemoryMB: 4096, GPUMode: "swiftshader_indirect", Headless: true}.Overrides())

	var buf bytes.Buffer
	_, err = cfg.WriteTo(&buf)
	require.NoError(t, err)

	want := strings.Join([]string{
		"AvdId=test_android_34",
		"# comment without equals sign",
		"hw.ramSize=4096",
		"image.sysdir.1=system-images/android-34/google_apis/arm64-v8a/",
		"hw.keyboard=yes",
		"",
		"hw.lcd.density=440",
		"hw.gpu.enabled=yes",
		"hw.gpu.mode=swiftshader_indirect",
		"hw.accelerometer=yes",
		"hw.battery=yes",
		"hw.camera.back=virtualscene",
		"hw.camera.front=emulated",
		"showDeviceFrame=no",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestHWConfig_MergeIsIdempotent(t *testing.T) {
	overrides := Settings{MemoryMB: 2048, GPUMode: "auto"}.Overrides()

	cfg, err := ParseHWConfig(strings.NewReader("hw.ramSize=1024\n"))
	require.NoError(t, err)
	cfg.Merge(overrides)
	var first bytes.Buffer
	_, _ = cfg.WriteTo(&first)

	again, err := ParseHWConfig(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	again.Merge(overrides)
	var second bytes.Buffer
	_, _ = again.WriteTo(&second)

	assert.Equal(t, first.String(), second.String())
}

func TestHWConfig_DuplicateKeysAllReplaced(t *testing.T) {
	cfg, err := ParseHWConfig(strings.NewReader("hw.gpu.mode=host\nx=1\nhw.gpu.mode=off\n"))
	require.NoError(t, err)
	cfg.Set("hw.gpu.mode", "auto")

	var buf bytes.Buffer
	_, _ = cfg.WriteTo(&buf)
	assert.Equal(t, "hw.gpu.mode=auto\nx=1\nhw.gpu.mode=auto\n", buf.String())
}

func TestHWConfig_GetAndValues(t *testing.T) {
	cfg, err := ParseHWConfig(strings.NewReader("a=1\r\nb = two = 2\na=3\nnoise\n"))
	require.NoError(t, err)

	v, ok := cfg.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "two = 2", v)

	_, ok = cfg.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]string{"a": "1", "b": "two = 2"}, cfg.Values())
}

func TestSettings_OverridesFrame(t *testing.T) {
	last := func(s Settings) Override {
		o := s.Overrides()
		return o[len(o)-1]
	}
	assert.Equal(t, Override{"showDeviceFrame", "no"}, last(Settings{Headless: true}))
	assert.Equal(t, Override{"showDeviceFrame", "yes"}, last(Settings{Headless: false}))
	assert.Equal(t, Override{"hw.ramSize", "2048"}, Settings{MemoryMB: 2048}.Overrides()[0])
}
