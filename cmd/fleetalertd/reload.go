package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetalert/engine/internal/config"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Trigger a forced rule cache reload against a running engine",
	Long: `reload calls the admin API's /reload endpoint, the "explicit
forced reload (startup, admin action)" trigger named in the rule cache's
reload contract.`,
	RunE: runReload,
}

func init() {
	reloadCmd.Flags().String("admin-addr", "", "Admin API address (defaults to the configured FLEETALERT_ADMIN_ADDR)")
}

func runReload(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("admin-addr")
	if addr == "" {
		addr = strings.TrimSpace(os.Getenv("FLEETALERT_ADMIN_ADDR"))
	}
	if addr == "" {
		addr = config.DefaultAdminAddr
	}

	if err := postReload(&http.Client{Timeout: 10 * time.Second}, fmt.Sprintf("http://%s/reload", addr)); err != nil {
		return err
	}

	fmt.Println("rule cache reload triggered")
	return nil
}

// postReload issues the admin API's reload request against url, isolated
// from flag/env resolution so it can be exercised against an httptest
// server directly.
func postReload(client *http.Client, url string) error {
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("call /reload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reload request failed: status %s", resp.Status)
	}
	return nil
}
