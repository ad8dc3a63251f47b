package systemd

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUnitTemplate(t *testing.T) {
	unit := UnitTemplate()
	for _, want := range []string{
		"[Unit]", "[Service]", "[Install]",
		"triaged serve",
		"Restart=on-failure",
		"ProtectSystem=strict",
	} {
		if !strings.Contains(unit, want) {
			t.Errorf("unit template missing %q", want)
		}
	}
}

func withTestPaths(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origPaths, origHash := UnitFilePaths, UnitHashPath
	UnitFilePaths = []string{filepath.Join(dir, "triaged.service")}
	UnitHashPath = filepath.Join(dir, "unit-file.sha256")
	t.Cleanup(func() {
		UnitFilePaths, UnitHashPath = origPaths, origHash
	})
	return dir
}

func TestCheckUnitIntegrityNoUnitFile(t *testing.T) {
	withTestPaths(t)
	if msg := CheckUnitIntegrity(); msg != "" {
		t.Errorf("CheckUnitIntegrity = %q, want empty when no unit file", msg)
	}
}

func TestCheckUnitIntegrityNoStoredHash(t *testing.T) {
	withTestPaths(t)
	if err := os.WriteFile(UnitFilePaths[0], []byte(UnitTemplate()), 0600); err != nil {
		t.Fatalf("write unit: %v", err)
	}
	if msg := CheckUnitIntegrity(); msg != "" {
		t.Errorf("CheckUnitIntegrity = %q, want empty without a baseline", msg)
	}
}

func TestCheckUnitIntegrityDetectsTamper(t *testing.T) {
	withTestPaths(t)
	if err := os.WriteFile(UnitFilePaths[0], []byte(UnitTemplate()), 0600); err != nil {
		t.Fatalf("write unit: %v", err)
	}
	if err := RecordUnitHash(); err != nil {
		t.Fatalf("RecordUnitHash: %v", err)
	}

	if msg := CheckUnitIntegrity(); msg != "" {
		t.Errorf("CheckUnitIntegrity = %q, want empty for untouched unit", msg)
	}

	tampered := strings.Replace(UnitTemplate(), "Restart=on-failure", "Restart=no", 1)
	if err := os.WriteFile(UnitFilePaths[0], []byte(tampered), 0600); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	msg := CheckUnitIntegrity()
	if msg == "" {
		t.Fatal("tampered unit file passed integrity check")
	}
	if !strings.Contains(msg, "modified since installation") {
		t.Errorf("msg = %q", msg)
	}
}

func TestRecordUnitHash(t *testing.T) {
	withTestPaths(t)
	content := []byte(UnitTemplate())
	if err := os.WriteFile(UnitFilePaths[0], content, 0600); err != nil {
		t.Fatalf("write unit: %v", err)
	}
	if err := RecordUnitHash(); err != nil {
		t.Fatalf("RecordUnitHash: %v", err)
	}

	stored, err := os.ReadFile(UnitHashPath)
	if err != nil {
		t.Fatalf("read hash: %v", err)
	}
	h := sha256.Sum256(content)
	if strings.TrimSpace(string(stored)) != hex.EncodeToString(h[:]) {
		t.Error("stored hash does not match unit file")
	}
}

func TestRecordUnitHashNoUnitFile(t *testing.T) {
	withTestPaths(t)
	if err := RecordUnitHash(); err == nil {
		t.Error("RecordUnitHash succeeded without a unit file")
	}
}
