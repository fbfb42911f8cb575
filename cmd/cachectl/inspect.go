package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/agentuity/storefront-cache/cache"
	"github.com/agentuity/storefront-cache/config"
	"github.com/agentuity/storefront-cache/tui"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts and stored size",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			stats := a.store.Stats(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, stats)
			}
			tui.Table(out, []string{"Memory entries", "Storage entries", "Stored size"}, [][]string{{
				strconv.Itoa(stats.MemoryEntries),
				strconv.Itoa(stats.StorageEntries),
				humanize.IBytes(uint64(stats.TotalSize)),
			}})
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func formatTTL(seconds int64) string {
	if seconds <= 0 {
		return tui.Warning("expired")
	}
	return config.Duration(time.Duration(seconds) * time.Second).String()
}

func newKeysCommand() *cobra.Command {
	var (
		asJSON    bool
		namespace string
	)
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List cached keys with their tier, TTL and size",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			keys := a.store.Keys(cmd.Context())
			if namespace != "" {
				filtered := keys[:0]
				for _, k := range keys {
					if strings.HasPrefix(k.Key, namespace+cache.KeySeparator) {
						filtered = append(filtered, k)
					}
				}
				keys = filtered
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, keys)
			}
			if len(keys) == 0 {
				fmt.Fprintln(out, tui.Muted("no cached keys"))
				return nil
			}
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				size := tui.Muted("-")
				if k.Size != nil {
					size = humanize.IBytes(uint64(*k.Size))
				}
				rows = append(rows, []string{tui.MaxWidth(k.Key, 60), k.Tier, formatTTL(k.TTL), size})
			}
			tui.Table(out, []string{"Key", "Tier", "TTL", "Size"}, rows)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().StringVar(&namespace, "namespace", "", "only keys in this namespace, e.g. tenant or api")
	return cmd
}
