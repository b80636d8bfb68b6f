package hash

import "errors"

// ErrInvalidLength is returned by ParseFingerprint when the decoded bytes don't match
// the expected fingerprint width.
var ErrInvalidLength = errors.New("hash: decoded fingerprint has wrong length")
