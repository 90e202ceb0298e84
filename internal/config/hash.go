package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// ChecksumSuffix names the sidecar holding a config file's expected hash.
const ChecksumSuffix = ".b3"

// Fingerprint returns the hex BLAKE3 hash of data.
func Fingerprint(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return Fingerprint(data), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}

	return nil
}

// ChecksumPath returns the sidecar path for configPath.
func ChecksumPath(configPath string) string {
	return configPath + ChecksumSuffix
}

// WriteChecksum hashes configPath and writes the sidecar in b3sum format.
func WriteChecksum(configPath string) (string, error) {
	hash, err := ComputeBlake3Hash(configPath)
	if err != nil {
		return "", err
	}

	line := fmt.Sprintf("%s  %s\n", hash, filepath.Base(configPath))
	// Write with restrictive permissions (contains expected hash)
	if err := os.WriteFile(ChecksumPath(configPath), []byte(line), 0600); err != nil {
		return "", fmt.Errorf("failed to write checksum: %w", err)
	}
	return hash, nil
}

// LoadChecksum reads the expected hash for configPath. ok is false when no
// sidecar exists.
func LoadChecksum(configPath string) (hash string, ok bool, err error) {
	data, err := os.ReadFile(ChecksumPath(configPath))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read checksum: %w", err)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", false, fmt.Errorf("checksum file %s is empty", ChecksumPath(configPath))
	}
	hash = strings.ToLower(fields[0])
	if _, err := hex.DecodeString(hash); err != nil || len(hash) != 64 {
		return "", false, fmt.Errorf("checksum file %s does not hold a BLAKE3 hash", ChecksumPath(configPath))
	}
	return hash, true, nil
}

// verifyChecksum checks data against the sidecar of configPath, if present.
func verifyChecksum(configPath string, data []byte) error {
	expected, ok, err := LoadChecksum(configPath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if actual := Fingerprint(data); actual != expected {
		return fmt.Errorf("config verification failed for %s: expected %s, got %s\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: tokenforge config hash --config %s",
			configPath, expected, actual, configPath)
	}
	return nil
}
