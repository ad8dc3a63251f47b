// Package systemd generates the triaged service unit and checks it for
// post-install tampering.
package systemd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// UnitTemplate returns the systemd unit for the triaged daemon.
func UnitTemplate() string {
	return `[Unit]
Description=Trust and anomaly triage engine
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=/usr/local/bin/triaged serve --config /etc/triaged/triaged.yaml
Restart=on-failure
RestartSec=2
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=true
ReadWritePaths=/var/lib/triaged

[Install]
WantedBy=multi-user.target
`
}

// UnitFilePaths are the locations checked for the installed unit file.
var UnitFilePaths = []string{
	"/etc/systemd/system/triaged.service",
}

// UnitHashPath stores the install-time hash of the unit file.
var UnitHashPath = "/var/lib/triaged/unit-file.sha256"

// CheckUnitIntegrity compares the installed unit file against its
// install-time hash. Returns a warning message on mismatch, or an empty
// string when integrity holds or checking does not apply.
func CheckUnitIntegrity() string {
	var unitPath string
	for _, p := range UnitFilePaths {
		if _, err := os.Stat(p); err == nil {
			unitPath = p
			break
		}
	}
	if unitPath == "" {
		return ""
	}

	stored, err := os.ReadFile(UnitHashPath)
	if err != nil {
		return ""
	}
	expected := strings.TrimSpace(string(stored))
	if len(expected) != 64 {
		return ""
	}

	data, err := os.ReadFile(unitPath)
	if err != nil {
		return fmt.Sprintf("cannot read unit file %s: %v", unitPath, err)
	}
	h := sha256.Sum256(data)
	actual := hex.EncodeToString(h[:])
	if actual == expected {
		return ""
	}
	return fmt.Sprintf("unit file %s modified since installation (expected %s, got %s)",
		unitPath, expected[:16], actual[:16])
}

// RecordUnitHash writes the SHA-256 of the installed unit file to
// UnitHashPath, establishing the integrity baseline.
func RecordUnitHash() error {
	for _, p := range UnitFilePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		h := sha256.Sum256(data)
		return os.WriteFile(UnitHashPath, []byte(hex.EncodeToString(h[:])+"\n"), 0600)
	}
	return fmt.Errorf("no unit file found at expected paths")
}
