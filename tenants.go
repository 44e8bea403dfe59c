package main

import (
	"os"

	"github.com/spf13/cobra"
)

// tenantJSON is the machine-readable row for one configured tenant. API
// keys are deliberately absent from every output form.
type tenantJSON struct {
	Idn       string `json:"idn"`
	ProjectID string `json:"project_id"`
	Default   bool   `json:"default"`
}

func newTenantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List configured tenants",
		Long: `Tenants lists every tenant resolved from the environment, the preferred
project filter of each, and which one is the default.

Credentials come from SPINDLE_API_KEY_<NAME> variables (or SPINDLE_API_KEYS,
or the single-tenant SPINDLE_API_KEY); key values themselves are never
printed.`,
		Args: cobra.NoArgs,
		RunE: runTenants,
	}
}

func runTenants(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	reg, err := tenantRegistry(cc)
	if err != nil {
		return err
	}

	def, hasDefault := reg.Default()

	if cc.Flags.JSON {
		out := make([]tenantJSON, 0, reg.Len())
		for _, t := range reg.All() {
			out = append(out, tenantJSON{
				Idn:       t.Idn,
				ProjectID: t.ProjectID,
				Default:   hasDefault && def.Idn == t.Idn,
			})
		}

		return printJSON(os.Stdout, out)
	}

	rows := make([][]string, 0, reg.Len())

	for _, t := range reg.All() {
		project := t.ProjectID
		if project == "" {
			project = "-"
		}

		marker := ""
		if hasDefault && def.Idn == t.Idn {
			marker = "*"
		}

		rows = append(rows, []string{t.Idn, project, marker})
	}

	printTable(os.Stdout, []string{"IDN", "PROJECT FILTER", "DEFAULT"}, rows)

	return nil
}
