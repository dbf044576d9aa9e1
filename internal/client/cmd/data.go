package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

type dataClient struct{ serverURL *string }

func newDataCmd(serverURL *string) *cobra.Command {
	d := &dataClient{serverURL: serverURL}
	cmd := &cobra.Command{Use: "data", Short: "Manage documents"}
	cmd.AddCommand(&cobra.Command{Use: "put [file]", Short: "Store a JSON document (from file or stdin)", Args: cobra.MaximumNArgs(1), RunE: d.put})
	cmd.AddCommand(&cobra.Command{Use: "get <id>", Short: "Fetch a document by id", Args: cobra.ExactArgs(1), RunE: d.get})
	cmd.AddCommand(&cobra.Command{Use: "list", Short: "List all documents", RunE: d.list})
	cmd.AddCommand(&cobra.Command{Use: "delete <id>", Short: "Delete a document by id", Args: cobra.ExactArgs(1), RunE: d.delete})
	return cmd
}

func (d *dataClient) put(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if len(args) == 1 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}
	var payload json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("input is not valid JSON: %w", err)
	}
	body, _ := json.Marshal(map[string]json.RawMessage{"data": payload})
	resp, err := authorizedRequest(http.MethodPost, *d.serverURL+"/data", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("put failed: %s", resp.Status)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.ID)
	return nil
}

func (d *dataClient) get(cmd *cobra.Command, args []string) error {
	resp, err := authorizedRequest(http.MethodGet, *d.serverURL+"/data/"+args[0], nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("get failed: %s", resp.Status)
	}
	return printIndented(cmd, resp.Body)
}

func (d *dataClient) list(cmd *cobra.Command, args []string) error {
	resp, err := authorizedRequest(http.MethodGet, *d.serverURL+"/data", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("list failed: %s", resp.Status)
	}
	return printIndented(cmd, resp.Body)
}

func (d *dataClient) delete(cmd *cobra.Command, args []string) error {
	resp, err := authorizedRequest(http.MethodDelete, *d.serverURL+"/data/"+args[0], nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delete failed: %s", resp.Status)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Deleted")
	return nil
}

func printIndented(cmd *cobra.Command, r io.Reader) error {
	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
