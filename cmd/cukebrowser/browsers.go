package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/cukebrowser/internal/config"
	"github.com/shehryarbajwa/cukebrowser/internal/driver"
)

func newBrowsersCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "browsers",
		Short: "List the named browser providers and their settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return &usageError{err: err}
			}
			factory := driver.NewDefaultFactory(zap.NewNop(), driver.Options{
				ChromePath:       cfg.ChromePath,
				FirefoxPath:      cfg.FirefoxPath,
				BrowserlessImage: cfg.BrowserlessImage,
			})
			defer factory.Close()
			return listBrowsers(cmd.OutOrStdout(), factory, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

type browserRow struct {
	Name string `json:"name"`
	driver.Settings
}

func listBrowsers(w io.Writer, factory *driver.Factory, asJSON bool) error {
	var rows []browserRow
	for _, name := range factory.Names() {
		p, _ := factory.Provider(name)
		rows = append(rows, browserRow{Name: p.Name(), Settings: p.Settings()})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tHEADLESS\tINSECURE CERTS\tMAXIMIZED\tBINARY")
	for _, r := range rows {
		binary := r.ExecPath
		if binary == "" {
			binary = "-"
		}
		fmt.Fprintf(tw, "%s\t%t\t%t\t%t\t%s\n", r.Name, r.Headless, r.AcceptInsecureCerts, r.Maximized, binary)
	}
	return tw.Flush()
}
