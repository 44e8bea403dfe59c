package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spindleworks/spindle-go/internal/auth"
	"github.com/spindleworks/spindle-go/internal/state"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Validate a tenant's credentials",
		Long: `Exchange the tenant's API key for a fresh token pair and persist it.
Sync commands acquire tokens on their own; login exists to verify a
credential before the first pull and to recover from a revoked token.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

// loginJSON is the --json output document. Token values are deliberately
// absent: they live only in the token file.
type loginJSON struct {
	Tenant    string `json:"tenant"`
	ExpiresAt string `json:"expires_at"`
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	ten, err := selectTenant(cc)
	if err != nil {
		return err
	}

	paths := state.NewPaths(cc.Cfg.StateDir, ten.Idn)
	tokens := auth.NewManager(cc.Cfg.BaseURL, ten, paths.TokenFile(), defaultHTTPClient(), cc.Logger)

	rec, err := tokens.Exchange(cmd.Context())
	if err != nil {
		return err
	}

	expires := time.UnixMilli(rec.ExpiresAt)

	if cc.Flags.JSON {
		return printJSON(os.Stdout, loginJSON{Tenant: ten.Idn, ExpiresAt: expires.UTC().Format(time.RFC3339)})
	}

	cc.Statusf("Logged in tenant %s; token valid until %s.\n", ten.Idn, formatWhen(expires))

	return nil
}
