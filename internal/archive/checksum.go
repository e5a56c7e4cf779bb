package archive

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const checksumChunkSize = 64 * 1024

// ChecksumFile computes the hex MD5 digest of the file at path, reading in
// fixed-size chunks so multi-gigabyte archives never load into memory. MD5 is
// the digest the R2R repository verifies transfers against; it is not a
// security boundary.
func ChecksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	hasher := md5.New()
	buf := make([]byte, checksumChunkSize)
	if _, err := io.CopyBuffer(hasher, file, buf); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
