package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type adminClient struct{ serverURL *string }

func newAdminCmd(serverURL *string) *cobra.Command {
	a := &adminClient{serverURL: serverURL}
	cmd := &cobra.Command{Use: "admin", Short: "Admin-only commands"}
	cmd.AddCommand(&cobra.Command{Use: "users", Short: "List registered users", RunE: a.users})
	cmd.AddCommand(&cobra.Command{Use: "metrics", Short: "Show usage metrics", RunE: a.metrics})
	return cmd
}

func (a *adminClient) users(cmd *cobra.Command, args []string) error {
	resp, err := authorizedRequest(http.MethodGet, *a.serverURL+"/admin/users", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("users failed: %s", resp.Status)
	}
	return printIndented(cmd, resp.Body)
}

func (a *adminClient) metrics(cmd *cobra.Command, args []string) error {
	resp, err := authorizedRequest(http.MethodGet, *a.serverURL+"/metrics", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("metrics failed: %s", resp.Status)
	}
	return printIndented(cmd, resp.Body)
}
