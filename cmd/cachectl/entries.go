package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentuity/storefront-cache/cache"
	"github.com/agentuity/storefront-cache/config"
	"github.com/agentuity/storefront-cache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var errNotFound = errors.New("not found")

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the cached value of a key as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			key, err := cache.ParseKey(args[0])
			if err != nil {
				return err
			}
			found, data := a.store.Get(cmd.Context(), key)
			if !found {
				return errors.Wrapf(errNotFound, "%s", key)
			}
			buf, err := json.MarshalIndent(data, "", "  ")
			if err != nil {
				return errors.Wrapf(err, "format %s", key)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(buf))
			return nil
		}),
	}
}

// parseValue reads a command line value as JSON, falling back to the plain string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func newSetCommand() *cobra.Command {
	var ttl, dataType string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value; JSON values are stored decoded",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if ttl != "" && dataType != "" {
				return errors.New("--ttl and --type are mutually exclusive")
			}
			key, err := cache.ParseKey(args[0])
			if err != nil {
				return err
			}
			value := parseValue(args[1])
			ctx := cmd.Context()

			var d time.Duration
			switch {
			case dataType != "":
				t, err := cache.ParseDataType(dataType)
				if err != nil {
					return err
				}
				if err := a.store.SetByType(ctx, key, value, t); err != nil {
					return err
				}
				d = a.store.TTLFor(t)
			default:
				if ttl != "" {
					v, err := config.ParseDuration(ttl)
					if err != nil {
						return err
					}
					d = v.Std()
				}
				if d <= 0 {
					d = a.cfg.Cache.DefaultTTL.Std()
				}
				if err := a.store.Set(ctx, key, value, d); err != nil {
					return err
				}
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "stored %s for %s", key, config.Duration(d))
			return nil
		}),
	}
	cmd.Flags().StringVar(&ttl, "ttl", "", "time to live, e.g. 90m, 1d or 2w (default cache.default_ttl)")
	cmd.Flags().StringVar(&dataType, "type", "", "use the TTL of a data type: api, user, tenant, chat or session")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>...",
		Aliases: []string{"rm"},
		Short:   "Remove keys from both tiers",
		Args:    cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			keys := make([]cache.Key, 0, len(args))
			for _, arg := range args {
				key, err := cache.ParseKey(arg)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}
			for _, key := range keys {
				a.store.Delete(cmd.Context(), key)
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "deleted %d key(s)", len(keys))
			return nil
		}),
	}
}
