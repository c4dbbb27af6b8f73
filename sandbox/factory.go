package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/coderunner/config"
)

// NewExecutor creates the sandbox executor described by the configuration
// and prepares the workspace locations when configured to.
func NewExecutor(logger *zap.Logger, cfg *config.Config) (SandboxExecutor, error) {
	registry, err := RegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build language registry: %w", err)
	}

	settings := Settings{
		Runtime:        cfg.Sandbox.Backend,
		OuterTimeout:   cfg.GetTimeout(),
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
		MaxConcurrent:  cfg.Sandbox.MaxConcurrent,
		KillTimeout:    cfg.GetTimeout(),
	}

	switch settings.Runtime {
	case "docker", "podman":
	default:
		return nil, fmt.Errorf("unsupported backend: %s", settings.Runtime)
	}

	executor, err := NewContainerExecutor(logger, registry, PolicyFromConfig(cfg), settings,
		WithWorkspaceRoot(cfg.Sandbox.WorkspaceRoot),
		WithCleanupTimeout(cfg.GetCleanupTimeout()))
	if err != nil {
		return nil, err
	}

	if cfg.Sandbox.PrepareWorkspaces {
		if err := executor.PrepareWorkspaces(); err != nil {
			return nil, err
		}
	}

	logger.Info("sandbox executor ready",
		zap.String("runtime", settings.Runtime),
		zap.String("workspace_root", cfg.Sandbox.WorkspaceRoot),
		zap.Strings("languages", registry.Languages()),
		zap.Duration("outer_timeout", settings.OuterTimeout),
		zap.Int("inner_timeout_sec", cfg.Sandbox.InnerTimeoutSec),
		zap.Int("max_concurrent", settings.MaxConcurrent))

	return executor, nil
}

// PolicyFromConfig builds the resource limit policy from the sandbox section
func PolicyFromConfig(cfg *config.Config) LimitPolicy {
	return LimitPolicy{
		CPUs:           cfg.Sandbox.CPUs,
		PidsLimit:      cfg.Sandbox.PidsLimit,
		TimeoutSeconds: cfg.Sandbox.InnerTimeoutSec,
		TierMemory: map[Tier]int64{
			TierStandard: int64(cfg.Sandbox.MemoryMB) * BytesPerMB,
			TierHigh:     int64(cfg.Sandbox.MemoryHighMB) * BytesPerMB,
			TierJIT:      int64(cfg.Sandbox.MemoryJITMB) * BytesPerMB,
		},
	}
}

// RegistryFromConfig merges the languages section over the built-in table
func RegistryFromConfig(cfg *config.Config) (*Registry, error) {
	prefix := cfg.Sandbox.ImagePrefix
	if prefix == "" {
		prefix = "myrunner"
	}

	profiles := DefaultProfiles(prefix)
	index := make(map[string]int, len(profiles))
	for i, p := range profiles {
		index[p.Key] = i
	}

	for key, lang := range cfg.Languages {
		i, builtin := index[key]
		if !builtin {
			profiles = append(profiles, LanguageProfile{
				Key:   key,
				Image: prefix + ":" + key,
				Tier:  TierStandard,
			})
			i = len(profiles) - 1
			index[key] = i
		}
		profiles[i] = applyOverride(profiles[i], lang)
	}

	return NewRegistry(profiles...)
}

func applyOverride(p LanguageProfile, lang config.Language) LanguageProfile {
	if lang.Image != "" {
		p.Image = lang.Image
	}
	if lang.Extension != "" {
		p.Extension = lang.Extension
	}
	if lang.Compile != "" {
		p.Compile = CommandTemplate(lang.Compile)
	}
	if lang.Run != "" {
		p.Run = CommandTemplate(lang.Run)
	}
	if lang.Tier != "" {
		p.Tier = Tier(lang.Tier)
	}
	if lang.EntryFile != "" {
		p.EntryFile = lang.EntryFile
	}
	if len(lang.Environment) > 0 {
		p.Environment = lang.Environment
	}
	return p
}
