package avd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/runner"
)

// Default sdkmanager deadlines.
const (
	DefaultLicenseTimeout  = 30 * time.Second
	DefaultDownloadTimeout = 10 * time.Minute
	listInstalledTimeout   = time.Minute
)

// ImageEnsurer makes a platform's system image available locally.
type ImageEnsurer interface {
	EnsureImage(ctx context.Context, platform int) error
	ImageID(platform int) string
}

// ProvisionerConfig configures a Provisioner.
type ProvisionerConfig struct {
	SDKManager      string
	Variant         string
	ABI             string
	LicenseTimeout  time.Duration
	DownloadTimeout time.Duration
}

// Provisioner installs system images through sdkmanager.
type Provisioner struct {
	cfg    ProvisionerConfig
	runner runner.Runner
	logger *logging.Logger
}

// NewProvisioner creates a Provisioner. Zero timeouts take the defaults.
func NewProvisioner(cfg ProvisionerConfig, r runner.Runner, logger *logging.Logger) *Provisioner {
	if cfg.SDKManager == "" {
		cfg.SDKManager = "sdkmanager"
	}
	if cfg.LicenseTimeout <= 0 {
		cfg.LicenseTimeout = DefaultLicenseTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	return &Provisioner{cfg: cfg, runner: r, logger: logger.WithPhase("provision")}
}

// ImageID returns the package id installed for platform.
func (p *Provisioner) ImageID(platform int) string {
	return ImageID(platform, p.cfg.Variant, p.cfg.ABI)
}

// Installed reports whether sdkmanager lists the platform's image as
// installed.
func (p *Provisioner) Installed(ctx context.Context, platform int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, listInstalledTimeout)
	defer cancel()

	res, err := p.runner.Run(ctx, runner.Cmd{Name: p.cfg.SDKManager, Args: []string{"--list_installed"}})
	if err != nil {
		return false, err
	}
	if res.ExitCode != 0 {
		return false, errors.NewToolError("sdkmanager", res.ExitCode, res.Stderr)
	}
	return strings.Contains(res.Stdout, p.ImageID(platform)), nil
}

// EnsureImage installs the platform's system image unless it is already
// present. It returns ErrUnsupportedPlatform for unknown platforms and
// ErrProvisionFailed when sdkmanager cannot install the image.
func (p *Provisioner) EnsureImage(ctx context.Context, platform int) error {
	if !Supported(platform) {
		p.logger.Error("unsupported platform version", "platform", platform)
		return fmt.Errorf("platform %d: %w", platform, errors.ErrUnsupportedPlatform)
	}

	image := p.ImageID(platform)
	log := p.logger.With("image", image)

	if ok, err := p.Installed(ctx, platform); err == nil && ok {
		log.Debug("system image already installed")
		return nil
	} else if err != nil {
		log.Debug("could not list installed packages", "error", err.Error())
	}

	log.Info("accepting sdk licenses")
	licCtx, cancel := context.WithTimeout(ctx, p.cfg.LicenseTimeout)
	lic, err := p.runner.Run(licCtx, runner.Cmd{
		Name:  p.cfg.SDKManager,
		Args:  []string{"--licenses"},
		Stdin: strings.NewReader(strings.Repeat("y\n", 64)),
	})
	cancel()
	if err != nil || lic.ExitCode != 0 {
		// The download reports the real problem if licenses are missing.
		log.Warn("license acceptance did not complete", "exit_code", lic.ExitCode)
	}

	log.Info("downloading system image")
	dlCtx, cancel := context.WithTimeout(ctx, p.cfg.DownloadTimeout)
	defer cancel()

	res, err := p.runner.Run(dlCtx, runner.Cmd{Name: p.cfg.SDKManager, Args: []string{image}})
	if err != nil {
		log.Error("system image download failed", "error", err.Error())
		return fmt.Errorf("%s: %w", image, errors.Join(errors.ErrProvisionFailed, err))
	}
	if res.ExitCode == 0 {
		log.Info("system image installed")
		return nil
	}
	if strings.Contains(strings.ToLower(res.Stderr), "already installed") {
		log.Info("system image already installed")
		return nil
	}

	log.Error("system image download failed", "exit_code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
	return fmt.Errorf("%s: %w", image, errors.Join(
		errors.ErrProvisionFailed,
		errors.NewToolError("sdkmanager", res.ExitCode, res.Stderr),
	))
}

var _ ImageEnsurer = (*Provisioner)(nil)
