package sandbox

import (
	"fmt"
	"strconv"
	"time"
)

// Tier is the memory class assigned to a language
type Tier string

// Resource tiers
const (
	TierStandard Tier = "standard" // scripting and native toolchains
	TierHigh     Tier = "high"     // VM-hosted runtimes and transpiled languages
	TierJIT      Tier = "jit"      // compilers that need a JIT warm-up
)

func (t Tier) valid() bool {
	switch t {
	case TierStandard, TierHigh, TierJIT:
		return true
	}
	return false
}

// BytesPerMB converts configured megabytes to bytes
const BytesPerMB = 1024 * 1024

// ResourceLimits are the container caps applied to one execution
type ResourceLimits struct {
	CPUs           float64
	MemoryBytes    int64
	PidsLimit      int
	TimeoutSeconds int // inner wall-clock cap, enforced inside the sandbox
}

// CPUFlag renders CPUs the way the container runtime expects (1, 0.5, ...)
func (l ResourceLimits) CPUFlag() string {
	return strconv.FormatFloat(l.CPUs, 'f', -1, 64)
}

// MemoryFlag renders MemoryBytes in megabytes when it is a whole number of them
func (l ResourceLimits) MemoryFlag() string {
	if l.MemoryBytes%BytesPerMB == 0 {
		return fmt.Sprintf("%dm", l.MemoryBytes/BytesPerMB)
	}
	return fmt.Sprintf("%db", l.MemoryBytes)
}

// LimitPolicy derives ResourceLimits from a language's tier.
// CPU, process cap and inner timeout are shared by all tiers.
type LimitPolicy struct {
	CPUs           float64
	PidsLimit      int
	TimeoutSeconds int
	TierMemory     map[Tier]int64
}

// DefaultLimitPolicy mirrors the stock deployment: 1 CPU, 64 processes,
// 12s inner timeout, 32/64/96 MB memory tiers.
func DefaultLimitPolicy() LimitPolicy {
	return LimitPolicy{
		CPUs:           1,
		PidsLimit:      64,
		TimeoutSeconds: 12,
		TierMemory: map[Tier]int64{
			TierStandard: 32 * BytesPerMB,
			TierHigh:     64 * BytesPerMB,
			TierJIT:      96 * BytesPerMB,
		},
	}
}

// Validate checks the policy against the outer supervision timeout
func (p LimitPolicy) Validate(outer time.Duration) error {
	if p.CPUs <= 0 {
		return fmt.Errorf("cpu share must be positive, got %v", p.CPUs)
	}
	if p.PidsLimit <= 0 {
		return fmt.Errorf("pids limit must be positive, got %d", p.PidsLimit)
	}
	if p.TimeoutSeconds <= 0 {
		return fmt.Errorf("inner timeout must be positive, got %d", p.TimeoutSeconds)
	}
	if time.Duration(p.TimeoutSeconds)*time.Second >= outer {
		return fmt.Errorf("inner timeout %ds must be less than outer timeout %s", p.TimeoutSeconds, outer)
	}
	for _, tier := range []Tier{TierStandard, TierHigh, TierJIT} {
		if p.TierMemory[tier] <= 0 {
			return fmt.Errorf("memory ceiling for tier %q must be positive", tier)
		}
	}
	return nil
}

// LimitsFor returns the caps for a language profile
func (p LimitPolicy) LimitsFor(profile LanguageProfile) ResourceLimits {
	tier := profile.Tier
	if !tier.valid() {
		tier = TierStandard
	}
	return ResourceLimits{
		CPUs:           p.CPUs,
		MemoryBytes:    p.TierMemory[tier],
		PidsLimit:      p.PidsLimit,
		TimeoutSeconds: p.TimeoutSeconds,
	}
}
