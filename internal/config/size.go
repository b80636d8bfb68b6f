package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/go-units"
)

// decimalMultipliers and binaryMultipliers implement the SIZE suffix grammar from the
// CLI spec: k, M, G, T are decimal (1000-based); Ki, Mi, Gi, Ti are binary (1024-based).
// docker/go-units' own RAMInBytes doesn't draw this distinction (it treats every
// suffix as binary, docker-flag style), so this function uses go-units' exported size
// constants directly instead of its parser.
var decimalMultipliers = map[string]int64{
	"k": units.KB,
	"M": units.MB,
	"G": units.GB,
	"T": units.TB,
}

var binaryMultipliers = map[string]int64{
	"Ki": units.KiB,
	"Mi": units.MiB,
	"Gi": units.GiB,
	"Ti": units.TiB,
}

// ParseSize parses a SIZE string as accepted by -M/--max-size: a decimal number
// (fractions such as "1.5" are accepted) followed by an optional suffix. "0" means unlimited. A bare number (no suffix) is
// interpreted with the default suffix, "G".
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	if s == "0" {
		return 0, nil
	}

	for suffix, mul := range binaryMultipliers {
		if strings.HasSuffix(s, suffix) {
			return parseSizeValue(strings.TrimSuffix(s, suffix), mul)
		}
	}
	for suffix, mul := range decimalMultipliers {
		if strings.HasSuffix(s, suffix) {
			return parseSizeValue(strings.TrimSuffix(s, suffix), mul)
		}
	}

	// No recognized suffix: treat as a bare number with the default suffix, G.
	return parseSizeValue(s, units.GB)
}

func parseSizeValue(numPart string, multiplier int64) (int64, error) {
	numPart = strings.TrimSpace(numPart)
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size: negative value")
	}
	return int64(n * float64(multiplier)), nil
}

// FormatSize renders a byte count as a human-readable decimal size (e.g. "1.2GB"),
// for use in stats output. A size of 0 is rendered as "unlimited".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "unlimited"
	}
	return units.HumanSize(float64(bytes))
}
