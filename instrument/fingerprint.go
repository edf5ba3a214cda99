package instrument

import (
	"github.com/minio/highwayhash"
)

var fingerprintKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Fingerprint hashes instrumented contents in the given order
func Fingerprint(contents ...[]byte) (uint64, error) {
	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return 0, err
	}
	for _, content := range contents {
		if _, err = hash.Write(content); err != nil {
			return 0, err
		}
	}
	return hash.Sum64(), nil
}
