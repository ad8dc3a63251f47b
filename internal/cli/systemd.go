package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/concordia-platform/triage/internal/systemd"
)

func init() {
	rootCmd.AddCommand(systemdCmd)
	systemdCmd.AddCommand(systemdUnitCmd)
	systemdCmd.AddCommand(systemdInstallCmd)
	systemdCmd.AddCommand(systemdCheckCmd)
}

var systemdCmd = &cobra.Command{
	Use:   "systemd",
	Short: "Systemd unit management",
}

var systemdUnitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Print the triaged service unit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(systemd.UnitTemplate())
	},
}

var systemdInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Write the service unit and record its integrity baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := systemd.UnitFilePaths[0]
		if err := os.WriteFile(path, []byte(systemd.UnitTemplate()), 0644); err != nil {
			return fmt.Errorf("write unit file: %w", err)
		}
		if err := systemd.RecordUnitHash(); err != nil {
			return fmt.Errorf("record unit hash: %w", err)
		}
		fmt.Printf("installed %s\nrun: systemctl daemon-reload && systemctl enable --now triaged\n", path)
		return nil
	},
}

var systemdCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the installed unit file against its install-time hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		if msg := systemd.CheckUnitIntegrity(); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		fmt.Println("unit file integrity OK")
		return nil
	},
}
