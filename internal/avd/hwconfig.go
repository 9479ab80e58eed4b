package avd

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Override is one key=value pair merged into a definition's config.ini.
type Override struct {
	Key   string
	Value string
}

// Settings are the hardware knobs applied to every definition droidbench
// creates.
type Settings struct {
	MemoryMB int
	GPUMode  string
	Headless bool
}

// Overrides returns the fixed override set for s, in the order missing keys
// are appended.
func (s Settings) Overrides() []Override {
	frame := "yes"
	if s.Headless {
		frame = "no"
	}
	return []Override{
		{"hw.ramSize", strconv.Itoa(s.MemoryMB)},
		{"hw.gpu.enabled", "yes"},
		{"hw.gpu.mode", s.GPUMode},
		{"hw.keyboard", "yes"},
		{"hw.accelerometer", "yes"},
		{"hw.battery", "yes"},
		{"hw.camera.back", "virtualscene"},
		{"hw.camera.front", "emulated"},
		{"showDeviceFrame", frame},
	}
}

type configLine struct {
	raw string
	key string // empty for lines without '='
}

// HWConfig is an ordered view of a config.ini file. Lines are kept
// verbatim unless their key is overwritten.
type HWConfig struct {
	lines []configLine
}

// ParseHWConfig reads config.ini content.
func ParseHWConfig(r io.Reader) (*HWConfig, error) {
	c := &HWConfig{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), "\r")
		c.lines = append(c.lines, configLine{raw: raw, key: lineKey(raw)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func lineKey(raw string) string {
	k, _, ok := strings.Cut(raw, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(k)
}

// Get returns the value of the first line with key.
func (c *HWConfig) Get(key string) (string, bool) {
	for _, l := range c.lines {
		if l.key == key {
			_, v, _ := strings.Cut(l.raw, "=")
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Set replaces every line with key, or appends key=value when absent.
func (c *HWConfig) Set(key, value string) {
	found := false
	for i, l := range c.lines {
		if l.key == key {
			c.lines[i] = configLine{raw: key + "=" + value, key: key}
			found = true
		}
	}
	if !found {
		c.lines = append(c.lines, configLine{raw: key + "=" + value, key: key})
	}
}

// Merge applies overrides in order.
func (c *HWConfig) Merge(overrides []Override) {
	for _, o := range overrides {
		c.Set(o.Key, o.Value)
	}
}

// Values returns every key with its first value.
func (c *HWConfig) Values() map[string]string {
	out := make(map[string]string)
	for _, l := range c.lines {
		if l.key == "" {
			continue
		}
		if _, seen := out[l.key]; !seen {
			v, _ := c.Get(l.key)
			out[l.key] = v
		}
	}
	return out
}

// WriteTo writes the config, one line per entry, each newline-terminated.
func (c *HWConfig) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, l := range c.lines {
		m, err := io.WriteString(w, l.raw+"\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
