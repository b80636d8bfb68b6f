package wrapper

// Passthrough is the zero-capability reference wrapper: it embeds Base and overrides
// nothing, so every command it handles runs through the driver with no caching
// benefit at all (empty preprocessor output, no relevant arguments filtered out beyond
// identity, no build files declared). It exists as the template a concrete per-tool
// wrapper starts from, and as the CLI's fallback when no tool-specific wrapper claims a
// command — per original_source/src/wrappers/program_wrapper.cpp, the defaults alone
// already form a complete, if maximally conservative, wrapper.
type Passthrough struct {
	Base
}
