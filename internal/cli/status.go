package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hollowaylab/reverie/internal/config"
	"github.com/hollowaylab/reverie/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	lifecycle := daemon.NewLifecycle(cfg.DataDir, zerolog.Nop())
	if !lifecycle.IsRunning() {
		fmt.Println("Status: stopped")
		return nil
	}

	pid, err := lifecycle.PID()
	if err != nil {
		return fmt.Errorf("failed to read pid file: %w", err)
	}

	fmt.Println("Status: running")
	fmt.Printf("PID: %d\n", pid)
	if info, err := os.Stat(lifecycle.PIDFile()); err == nil {
		fmt.Printf("Uptime: %s\n", time.Since(info.ModTime()).Round(time.Second))
	}
	return nil
}
