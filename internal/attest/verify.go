package attest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// ChainResult holds the outcome of a registry hash chain verification.
type ChainResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// VerifyChain reads a JSONL registry file and validates the hash chain.
// Returns Valid=true if the chain is intact, or details about the first
// broken link.
func VerifyChain(path string) ChainResult {
	f, err := os.Open(path)
	if err != nil {
		return ChainResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	var prevLineBytes []byte

	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()

		// Copy: the scanner reuses its buffer.
		line := make([]byte, len(raw))
		copy(line, raw)

		var entry registryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return ChainResult{
				Error:     fmt.Sprintf("parse error: %v", err),
				ErrorLine: lineNum,
			}
		}

		if lineNum == 1 {
			if entry.PrevHash != GenesisHash {
				return ChainResult{
					Error:     fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", entry.PrevHash),
					ErrorLine: 1,
				}
			}
		} else {
			expected := HashBytes(prevLineBytes)
			if entry.PrevHash != expected {
				return ChainResult{
					Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", expected, entry.PrevHash),
					ErrorLine: lineNum,
				}
			}
		}

		prevLineBytes = line
	}

	if err := scanner.Err(); err != nil {
		return ChainResult{Error: fmt.Sprintf("scan: %v", err)}
	}

	return ChainResult{Valid: true, Lines: lineNum}
}
