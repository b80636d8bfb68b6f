// Package remote specifies the optional secondary cache tier: a capability interface
// the façade consults after a local miss. No transport is implemented here (HTTP, S3,
// and OCI-registry-backed remotes are external collaborators per spec) — this package
// ships only the contract and a Disabled no-op satisfying it.
package remote

import (
	"github.com/opencontainers/go-digest"

	"github.com/benoit-pierre/buildcache/internal/hash"
	"github.com/benoit-pierre/buildcache/internal/store"
)

// Cache is the capability interface a remote cache transport implements. Every method
// may fail; failures never propagate to the user-visible command's exit code — callers
// log and degrade to a miss/no-op.
type Cache interface {
	// Connect attempts to establish connectivity, reporting success.
	Connect() bool
	// IsConnected reports whether the cache is currently usable.
	IsConnected() bool
	// Lookup returns the entry for fp, or nil on a miss or any failure.
	Lookup(fp hash.Fingerprint) (*store.CacheEntry, error)
	// GetFile materializes one payload slot to targetPath, decompressing in transit if
	// compressed is set.
	GetFile(fp hash.Fingerprint, slotID, targetPath string, compressed bool) error
	// Add uploads entry and its expected-file payloads for fp. Remote entries are
	// always fully compressed regardless of local configuration.
	Add(fp hash.Fingerprint, entry *store.CacheEntry, expectedFiles []store.ExpectedFile) error
}

// Key renders a Fingerprint as the content-addressing digest string a real transport
// (HTTP, S3, or an OCI registry) would use to address the same content, via
// opencontainers/go-digest's canonical "<algorithm>:<hex>" form.
func Key(fp hash.Fingerprint) digest.Digest {
	return digest.NewDigestFromEncoded("murmur3-128", fp.String())
}

// Disabled is a Cache that is never connected and always no-ops. It is the default
// when no remote endpoint is configured.
type Disabled struct{}

func (Disabled) Connect() bool    { return false }
func (Disabled) IsConnected() bool { return false }

func (Disabled) Lookup(hash.Fingerprint) (*store.CacheEntry, error) {
	return nil, nil
}

func (Disabled) GetFile(hash.Fingerprint, string, string, bool) error {
	return nil
}

func (Disabled) Add(hash.Fingerprint, *store.CacheEntry, []store.ExpectedFile) error {
	return nil
}
