package avd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
)

// UnknownVersion is reported for platform versions outside the supported map.
const UnknownVersion = "Unknown"

// Unknown fills definition fields missing from config.ini.
const Unknown = "unknown"

// DefaultVariant is the system image variant used when none is configured.
const DefaultVariant = "google_apis"

// DefaultDeviceProfile is the hardware profile passed to avdmanager.
const DefaultDeviceProfile = "pixel_5"

// platformVersions maps supported API levels to Android release names.
// Level 32 (12L) is deliberately absent.
var platformVersions = map[int]string{
	31: "12",
	33: "13",
	34: "14",
	35: "15",
	36: "16",
}

// Supported reports whether a platform version can be provisioned.
func Supported(platform int) bool {
	_, ok := platformVersions[platform]
	return ok
}

// SupportedPlatforms returns the supported platform versions, ascending.
func SupportedPlatforms() []int {
	out := make([]int, 0, len(platformVersions))
	for p := range platformVersions {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// AndroidVersion returns the release name of a platform version, or
// UnknownVersion.
func AndroidVersion(platform int) string {
	if v, ok := platformVersions[platform]; ok {
		return v
	}
	return UnknownVersion
}

// HostABI returns the system image ABI matching a Go architecture name.
func HostABI(goarch string) string {
	if goarch == "arm64" {
		return "arm64-v8a"
	}
	return "x86_64"
}

// ImageID builds the sdkmanager package id of a system image. Empty variant
// or abi fall back to DefaultVariant and the host ABI.
func ImageID(platform int, variant, abi string) string {
	if variant == "" {
		variant = DefaultVariant
	}
	if abi == "" {
		abi = HostABI(runtime.GOARCH)
	}
	return fmt.Sprintf("system-images;android-%d;%s;%s", platform, variant, abi)
}

// DefinitionName returns the conventional definition name for a platform,
// e.g. test_android_34.
func DefinitionName(prefix string, platform int) string {
	if prefix == "" {
		prefix = "test_android_"
	}
	return fmt.Sprintf("%s%d", prefix, platform)
}

// Home returns the directory holding <name>.avd folders: ANDROID_AVD_HOME,
// then $ANDROID_USER_HOME/avd, then ~/.android/avd.
func Home(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if dir := getenv("ANDROID_AVD_HOME"); dir != "" {
		return dir
	}
	if dir := getenv("ANDROID_USER_HOME"); dir != "" {
		return filepath.Join(dir, "avd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".android", "avd")
}
