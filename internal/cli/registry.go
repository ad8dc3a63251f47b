package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/concordia-platform/triage/internal/attest"
)

var tailLines int

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryVerifyCmd)
	registryCmd.AddCommand(registryTailCmd)
	registryTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Federation registry operations",
	Long:  "Commands for verifying and inspecting the hash-chained attestation registries.",
}

var registryVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of a registry file",
	Long:  "Walks the JSONL registry and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryVerify,
}

var registryTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent registry entries",
	Long:  "Reads the last N entries from the JSONL registry and pretty-prints them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryTail,
}

func runRegistryVerify(cmd *cobra.Command, args []string) error {
	result := attest.VerifyChain(args[0])
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	if result.ErrorLine > 0 {
		return fmt.Errorf("chain broken at line %d: %s", result.ErrorLine, result.Error)
	}
	return fmt.Errorf("verification failed: %s", result.Error)
}

func runRegistryTail(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > tailLines {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan registry: %w", err)
	}

	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Println(line)
			continue
		}
		pretty, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			fmt.Println(line)
			continue
		}
		fmt.Println(string(pretty))
	}
	return nil
}
