// Package wrapper defines the per-tool-family adapter contract and the fixed
// template-method algorithm ("the driver") that every wrapper is put through,
// independent of which tool family it targets. A wrapper is expressed as a capability
// interface rather than classical inheritance: the driver holds a Wrapper value and
// calls through it, and Base supplies the conservative default bodies a concrete
// wrapper can embed and selectively override.
package wrapper

import (
	"github.com/benoit-pierre/buildcache/internal/hash"
)

// Capability is one of the strings a wrapper reports from GetCapabilities. HardLinks
// means outputs are guaranteed not to be mutated by consumers post-build, so it is safe
// to link them into the cache instead of copying. DirectMode means the wrapper can
// reliably enumerate implicit inputs (see GetDirectHashInputs) and the driver should
// attempt a direct-mode lookup before falling back to preprocessor mode.
type Capability string

const (
	CapabilityHardLinks  Capability = "hard_links"
	CapabilityDirectMode Capability = "direct_mode"
)

// BuildFile is one output the wrapper expects the underlying tool to produce.
type BuildFile struct {
	SlotID   string
	Path     string
	Required bool
}

// Wrapper is the capability set the driver's fixed algorithm (Driver.HandleCommand)
// consumes. Implementations adapt a heterogeneous command line for one tool family
// (GCC-like, MSVC-like, Green Hills, scripted, ...); concrete per-family wrappers are
// out of scope here (see passthrough.go for the zero-capability reference
// implementation used by tests and the CLI fallback path).
type Wrapper interface {
	// ResolveArgs expands response files and similar indirections, returning the
	// effective argument vector.
	ResolveArgs(args []string) ([]string, error)

	// GetCapabilities reports this wrapper's capability set.
	GetCapabilities() []Capability

	// PreprocessSource runs the tool's preprocessing step (e.g. `cc -E`) and returns
	// its output, which becomes part of the preprocessor fingerprint.
	PreprocessSource(args []string) (string, error)

	// GetRelevantArguments filters args down to the subset that affects the build
	// output (dropping things like `-o` paths that don't affect content). Order is
	// preserved and is part of the fingerprint contract.
	GetRelevantArguments(args []string) []string

	// GetRelevantEnvVars returns the environment variables that affect the build
	// output, keyed by name.
	GetRelevantEnvVars(env []string) map[string]string

	// GetProgramID identifies the underlying tool binary itself (typically a digest of
	// its content), so upgrading the compiler invalidates old entries.
	GetProgramID(programPath string) (string, error)

	// GetBuildFiles enumerates the outputs the tool is expected to produce for this
	// invocation.
	GetBuildFiles(args []string) []BuildFile
}

// DirectModeSource is implemented by wrappers that can reliably enumerate the implicit
// inputs (typically headers) a tool invocation read, without running the preprocessor.
// A wrapper that cannot produce this list reliably must not implement this interface
// (and so must not report CapabilityDirectMode) rather than guess.
type DirectModeSource interface {
	GetDirectHashInputs(args []string) ([]string, error)
}

// Base supplies the conservative default method bodies described in
// original_source/src/wrappers/program_wrapper.cpp: a no-op resolve, no capabilities,
// empty preprocessing, identity argument filtering, no environment sensitivity, and no
// build files. A concrete wrapper embeds Base and overrides only what it needs.
type Base struct{}

func (Base) ResolveArgs(args []string) ([]string, error) { return args, nil }

func (Base) GetCapabilities() []Capability { return nil }

func (Base) PreprocessSource([]string) (string, error) { return "", nil }

func (Base) GetRelevantArguments(args []string) []string { return args }

func (Base) GetRelevantEnvVars([]string) map[string]string { return map[string]string{} }

// GetProgramID hashes the program binary's content, so a recompiled or upgraded tool
// naturally invalidates entries keyed against the old binary.
func (Base) GetProgramID(programPath string) (string, error) {
	fp, err := hash.File(programPath)
	if err != nil {
		return "", err
	}
	return fp.String(), nil
}

func (Base) GetBuildFiles([]string) []BuildFile { return nil }

// HasCapability reports whether caps contains want.
func HasCapability(caps []Capability, want Capability) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}
