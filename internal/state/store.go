package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"relaycode/internal/domain"
)

const (
	ConfigDirName    = ".config/relaycode"
	LocalStateDir    = ".local/state/relaycode"
	ConfigFileName   = "config.yaml"
	FixturesFileName = "transactions.yaml"
	LockFileName     = "lock"
	LogExportName    = "debug-log.json"
)

type Paths struct {
	Home string
}

func NewPaths(home string) Paths {
	return Paths{Home: home}
}

func (p Paths) ConfigRoot() string {
	return filepath.Join(p.Home, ConfigDirName)
}

func (p Paths) LocalStateRoot() string {
	return filepath.Join(p.Home, LocalStateDir)
}

func (p Paths) ConfigPath() string {
	return filepath.Join(p.ConfigRoot(), ConfigFileName)
}

// FixturesPath is where transactions live unless the config points
// elsewhere.
func (p Paths) FixturesPath() string {
	return filepath.Join(p.LocalStateRoot(), FixturesFileName)
}

func (p Paths) LockPath() string {
	return filepath.Join(p.LocalStateRoot(), LockFileName)
}

func (p Paths) LogExportPath() string {
	return filepath.Join(p.LocalStateRoot(), LogExportName)
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

const (
	defaultFlashMillis         = 1500
	defaultNotificationSeconds = 5
	defaultStepDelayMillis     = 350
	defaultLogCapacity         = 500
)

func DefaultConfig() domain.ConfigFile {
	return domain.ConfigFile{
		Version: domain.Version,
		UI: domain.UIConfig{
			FlashMillis:         defaultFlashMillis,
			NotificationSeconds: defaultNotificationSeconds,
			Reservations: map[string]domain.Reservation{
				string(domain.ScreenDashboard):          {Header: 4, Footer: 2, Separators: 2, Margin: 1},
				string(domain.ScreenReview):             {Header: 6, Footer: 2, Separators: 2, Margin: 1},
				string(domain.ScreenTransactionDetail):  {Header: 5, Footer: 2, Separators: 2, Margin: 1},
				string(domain.ScreenTransactionHistory): {Header: 3, Footer: 2, Separators: 2, Margin: 1},
				string(domain.ScreenDebugLog):           {Header: 3, Footer: 2, Separators: 1, Margin: 1},
			},
		},
		Pipeline: domain.PipelineConfig{
			StepDelayMillis: defaultStepDelayMillis,
			Scenario:        string(domain.ScenarioSuccess),
		},
		Log: domain.LogConfig{
			Capacity: defaultLogCapacity,
			Level:    "info",
		},
		Fixtures: domain.FixturesConfig{Watch: true},
	}
}

func LoadConfig(paths Paths) (domain.ConfigFile, error) {
	cfgPath := paths.ConfigPath()
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := SaveYAML(cfgPath, cfg); err != nil {
			return domain.ConfigFile{}, err
		}
		return cfg, nil
	}

	cfg := DefaultConfig()
	// Clear map defaults before unmarshal so explicit empty maps in YAML remain empty
	// instead of inheriting seeded defaults from the in-memory template.
	cfg.UI.Reservations = nil
	if err := LoadYAML(cfgPath, &cfg); err != nil {
		return domain.ConfigFile{}, fmt.Errorf("parse %s: %w", cfgPath, err)
	}
	return normalizeConfig(cfg), nil
}

func normalizeConfig(cfg domain.ConfigFile) domain.ConfigFile {
	defaults := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = domain.Version
	}
	if cfg.UI.FlashMillis <= 0 {
		cfg.UI.FlashMillis = defaultFlashMillis
	}
	if cfg.UI.NotificationSeconds <= 0 {
		cfg.UI.NotificationSeconds = defaultNotificationSeconds
	}
	if cfg.UI.Reservations == nil {
		cfg.UI.Reservations = defaults.UI.Reservations
	}
	if cfg.Pipeline.StepDelayMillis < 0 {
		cfg.Pipeline.StepDelayMillis = 0
	}
	if _, err := domain.ParseApplyScenario(cfg.Pipeline.Scenario); err != nil {
		cfg.Pipeline.Scenario = string(domain.ScenarioSuccess)
	}
	if cfg.Log.Capacity <= 0 {
		cfg.Log.Capacity = defaultLogCapacity
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	return cfg
}

func SaveConfig(paths Paths, cfg domain.ConfigFile) error {
	cfg.Version = domain.Version
	return SaveYAML(paths.ConfigPath(), cfg)
}

// ReservationFor returns the configured chrome rows for screen.
func ReservationFor(cfg domain.ConfigFile, screen domain.Screen) domain.Reservation {
	if r, ok := cfg.UI.Reservations[string(screen)]; ok {
		return r
	}
	return domain.Reservation{Header: 3, Footer: 2, Separators: 1, Margin: 1}
}

func LoadYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return err
	}
	return nil
}

func SaveYAML(path string, in any) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	b, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
