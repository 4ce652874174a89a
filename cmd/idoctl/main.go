// Command idoctl is a command line client for the presale API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/R3E-Network/presale_layer/internal/httputil"
)

type app struct {
	server  string
	token   string
	caller  string
	timeout time.Duration
	client  *httputil.Client
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "idoctl",
		Short: "Operate tiered token presales",
		Long: `idoctl talks to an idod server.

Authenticate with --token (a bearer JWT). Against a local server started with
trust_caller_header, --caller names the identity instead.

Defaults come from IDO_SERVER, IDO_TOKEN and IDO_CALLER.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.client = httputil.NewClient(httputil.ClientConfig{
				BaseURL: a.server,
				Token:   a.token,
				Caller:  a.caller,
				Timeout: a.timeout,
			})
		},
	}

	server := os.Getenv("IDO_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&a.server, "server", server, "presale API base URL")
	root.PersistentFlags().StringVar(&a.token, "token", os.Getenv("IDO_TOKEN"), "bearer token")
	root.PersistentFlags().StringVar(&a.caller, "caller", os.Getenv("IDO_CALLER"), "caller identity for trusted local servers")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		a.configCmd(),
		a.saleCmd(),
		a.stakeCmd(),
		a.unstakeCmd(),
		a.balanceCmd(),
		a.mintCmd(),
	)
	return root
}

// call sends a request and prints the JSON response.
func (a *app) call(cmd *cobra.Command, method, path string, body interface{}) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := a.client.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	var raw json.RawMessage
	if err := httputil.DecodeResponse(resp, &raw); err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(pretty.Pretty(raw))
	return err
}

func parseAmount(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

func seg(s string) string {
	return url.PathEscape(s)
}
