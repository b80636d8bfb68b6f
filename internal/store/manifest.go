package store

import (
	"encoding/json"
	"sort"

	"github.com/benoit-pierre/buildcache/internal/hash"
)

// manifestVersion mirrors entryVersion's role for DirectManifest descriptors.
const manifestVersion = 1

// DirectManifest records, for a direct-mode fingerprint, the preprocessor-mode
// fingerprint it resolves to and the content digests of the implicit inputs (typically
// headers) that were read while producing it. If every implicit input still digests to
// the same fingerprint, the preprocessor hash remains the right key to consult without
// re-running the preprocessor.
type DirectManifest struct {
	PreprocessorHash hash.Fingerprint
	ImplicitInputs   map[string]hash.Fingerprint
}

type manifestDescriptor struct {
	Version          int               `json:"version"`
	PreprocessorHash string            `json:"preprocessor_hash"`
	ImplicitInputs   map[string]string `json:"implicit_inputs"`
}

func encodeManifest(m *DirectManifest) ([]byte, error) {
	inputs := make(map[string]string, len(m.ImplicitInputs))
	for path, fp := range m.ImplicitInputs {
		inputs[path] = fp.String()
	}
	d := manifestDescriptor{
		Version:          manifestVersion,
		PreprocessorHash: m.PreprocessorHash.String(),
		ImplicitInputs:   inputs,
	}
	return json.Marshal(d)
}

func decodeManifest(data []byte) (*DirectManifest, error) {
	var d manifestDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errCorruptEntry
	}
	if d.Version != manifestVersion {
		return nil, errCorruptEntry
	}

	pfp, err := hash.ParseFingerprint(d.PreprocessorHash)
	if err != nil {
		return nil, errCorruptEntry
	}

	inputs := make(map[string]hash.Fingerprint, len(d.ImplicitInputs))
	for path, s := range d.ImplicitInputs {
		fp, err := hash.ParseFingerprint(s)
		if err != nil {
			return nil, errCorruptEntry
		}
		inputs[path] = fp
	}

	return &DirectManifest{PreprocessorHash: pfp, ImplicitInputs: inputs}, nil
}

// implicitInputsUnchanged reports whether every implicit input recorded in m still
// digests to the fingerprint recorded at add_direct time.
func implicitInputsUnchanged(m *DirectManifest) bool {
	paths := make([]string, 0, len(m.ImplicitInputs))
	for path := range m.ImplicitInputs {
		paths = append(paths, path)
	}
	sort.Strings(paths) // deterministic short-circuit order only; result is unaffected.

	for _, path := range paths {
		current, err := hash.File(path)
		if err != nil || current != m.ImplicitInputs[path] {
			return false
		}
	}
	return true
}
