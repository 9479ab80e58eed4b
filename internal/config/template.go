package config

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type templateField struct {
	key     string
	value   any
	comment string
}

type templateSection struct {
	key     string
	comment string
	fields  []templateField
}

// Template renders the default configuration as commented YAML, the
// content `droidbench config init` writes.
func Template() ([]byte, error) {
	d := Default()
	sections := []templateSection{
		{"sdk", "Android SDK location and system image selection", []templateField{
			{"root", d.SDK.Root, "Empty searches ANDROID_HOME, ANDROID_SDK_ROOT and the platform defaults"},
			{"image_variant", d.SDK.ImageVariant, ""},
			{"abi", d.SDK.ABI, "x86_64 or arm64-v8a"},
		}},
		{"emulator", "Device definitions and emulator launches", []templateField{
			{"headless", d.Emulator.Headless, "Run without a window"},
			{"memory_mb", d.Emulator.MemoryMB, ""},
			{"gpu_mode", d.Emulator.GPUMode, "auto, host, swiftshader_indirect, angle_indirect, guest or off"},
			{"device_profile", d.Emulator.DeviceProfile, ""},
			{"name_prefix", d.Emulator.NamePrefix, "Generated definitions are named <prefix><platform>"},
			{"discovery_timeout", d.Emulator.DiscoveryTimeout, "How long a new emulator may take to show up on adb"},
			{"discovery_interval", d.Emulator.DiscoveryInterval, ""},
			{"boot_timeout", d.Emulator.BootTimeout, ""},
			{"boot_interval", d.Emulator.BootInterval, ""},
		}},
		{"exec", "Device command execution", []templateField{
			{"timeout", d.Exec.Timeout, "Per attempt"},
			{"retry_attempts", d.Exec.RetryAttempts, "Total attempts per command"},
			{"retry_backoff", d.Exec.RetryBackoff, ""},
		}},
		{"provision", "sdkmanager deadlines", []templateField{
			{"download_timeout", d.Provision.DownloadTimeout, ""},
			{"license_timeout", d.Provision.LicenseTimeout, ""},
		}},
		{"logging", "JSON debug logs under <data_dir>/logs", []templateField{
			{"enabled", d.Logging.Enabled, ""},
			{"level", d.Logging.Level, "debug, info, warn or error"},
			{"max_size_mb", d.Logging.MaxSizeMB, ""},
			{"max_backups", d.Logging.MaxBackups, ""},
		}},
		{"paths", "Storage locations; ~ expands to the home directory", []templateField{
			{"data_dir", d.Paths.DataDir, "Empty means $XDG_DATA_HOME/droidbench or ~/.local/share/droidbench"},
			{"screenshot_dir", d.Paths.ScreenshotDir, "Empty means the system temp dir"},
			{"history_db", d.Paths.HistoryDB, "Empty means <data_dir>/history.db"},
		}},
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range sections {
		body := &yaml.Node{Kind: yaml.MappingNode}
		for _, f := range s.fields {
			var value yaml.Node
			if err := value.Encode(templateValue(f.value)); err != nil {
				return nil, fmt.Errorf("failed to encode %s.%s: %w", s.key, f.key, err)
			}
			body.Content = append(body.Content, commentedKey(f.key, f.comment), &value)
		}
		doc.Content = append(doc.Content, commentedKey(s.key, s.comment), body)
	}

	var buf bytes.Buffer
	buf.WriteString("# droidbench configuration\n\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to render config template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render config template: %w", err)
	}
	return buf.Bytes(), nil
}

func commentedKey(key, comment string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	if comment != "" {
		n.HeadComment = "# " + comment
	}
	return n
}

func templateValue(v any) any {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return v
}
