package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/agentuity/storefront-cache/monitor"
	"github.com/agentuity/storefront-cache/redact"
	"github.com/agentuity/storefront-cache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// fetchHealth returns the backend health payload, or nil when no backend is
// configured or it cannot be reached.
func fetchHealth(cmd *cobra.Command, a *app, apiURL string) json.RawMessage {
	if apiURL == "" {
		a.log.Debug("no api url configured, exporting without server health")
		return nil
	}
	client := monitor.NewClient(apiURL,
		monitor.WithToken(a.cfg.Monitor.Token.Reveal()),
		monitor.WithLogger(a.log),
	)
	health, err := client.Health(cmd.Context())
	if err != nil {
		a.log.Warn("fetch server health from %s: %s", redact.URL(apiURL), err)
		return nil
	}
	if h, err := monitor.DecodeHealth(health); err == nil && !h.Healthy() {
		tui.ShowWarning(cmd.ErrOrStderr(), "server reports status %s", h.Status)
	}
	return health
}

func newExportCommand() *cobra.Command {
	var tenant, apiURL, dir, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a diagnostic report of the cache and the backend health",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if tenant == "" {
				tenant = a.cfg.Monitor.Tenant
			}
			if tenant == "" {
				return errors.New("--tenant is required when monitor.tenant is not configured")
			}
			if apiURL == "" {
				apiURL = a.cfg.Monitor.APIURL
			}

			health := fetchHealth(cmd, a, apiURL)
			report := monitor.BuildReport(cmd.Context(), a.store, tenant, health, time.Now())

			if output == "-" {
				_, err := report.WriteTo(cmd.OutOrStdout())
				return err
			}
			if output == "" {
				output = filepath.Join(dir, monitor.ReportFilename(tenant, report.Timestamp))
			}
			if err := writeReport(output, report); err != nil {
				return err
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "wrote %s (%d keys)", output, len(report.CacheKeys))
			return nil
		}),
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant the report is for (default monitor.tenant)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "backend base url for the health check (default monitor.api_url)")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory for the report file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "report path, - for stdout (default cache-report-<tenant>-<date>.json in --dir)")
	return cmd
}

func writeReport(path string, report monitor.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report")
	}
	if _, err := report.WriteTo(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}
