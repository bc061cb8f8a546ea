package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Zachkp/portfolio/internal/cachestore"
	"github.com/Zachkp/portfolio/internal/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the offline cache stores",
	}

	// withStorage loads the config and opens the cache database for one command.
	withStorage := func(fn func(cmd *cobra.Command, args []string, cfg *config.Config, s cachestore.Storage) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			s, err := cachestore.OpenSQLite(cfg.DBPath, cachestore.WithCompression(cfg.Offline.Compress))
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			return fn(cmd, args, cfg, s)
		}
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cache stores with entry counts",
		Args:  cobra.NoArgs,
		RunE: withStorage(func(cmd *cobra.Command, _ []string, cfg *config.Config, s cachestore.Storage) error {
			return listCaches(cmd.Context(), cmd.OutOrStdout(), s, cfg.Offline.Prefix, cfg.CacheName())
		}),
	}

	keysCmd := &cobra.Command{
		Use:   "keys <name>",
		Short: "List the requests stored in one cache",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(func(cmd *cobra.Command, args []string, _ *config.Config, s cachestore.Storage) error {
			return listKeys(cmd.Context(), cmd.OutOrStdout(), s, args[0])
		}),
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cache stores left over from older versions",
		Args:  cobra.NoArgs,
		RunE: withStorage(func(cmd *cobra.Command, _ []string, cfg *config.Config, s cachestore.Storage) error {
			deleted, err := cachestore.PurgeStale(cmd.Context(), s, cfg.Offline.Prefix, cfg.CacheName())
			for _, name := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d stale caches removed, %s kept.\n", len(deleted), cfg.CacheName())
			return nil
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cache store",
		Args:  cobra.NoArgs,
		RunE: withStorage(func(cmd *cobra.Command, _ []string, _ *config.Config, s cachestore.Storage) error {
			n, err := clearCaches(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "All cache stores cleared (%d).\n", n)
			return nil
		}),
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.AddCommand(listCmd, keysCmd, purgeCmd, clearCmd)
	return cmd
}

func listCaches(ctx context.Context, w io.Writer, s cachestore.Storage, prefix, current string) error {
	stats, err := cachestore.Stats(ctx, s)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintln(w, "No cache stores.")
		return nil
	}

	names := make([]string, 0, len(stats))
	for _, st := range stats {
		names = append(names, st.Name)
	}
	stale := make(map[string]bool)
	for _, n := range cachestore.Stale(names, prefix, current) {
		stale[n] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENTRIES\tBYTES\tSTATUS")
	for _, st := range stats {
		status := ""
		switch {
		case st.Name == current:
			status = "current"
		case stale[st.Name]:
			status = "stale"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", st.Name, st.Entries, st.Bytes, status)
	}
	return tw.Flush()
}

func listKeys(ctx context.Context, w io.Writer, s cachestore.Storage, name string) error {
	ok, err := s.Has(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cache %q: %w", name, cachestore.ErrNotFound)
	}
	c, err := s.Open(ctx, name)
	if err != nil {
		return err
	}
	keys, err := c.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(w, k.String())
	}
	return nil
}

func clearCaches(ctx context.Context, s cachestore.Storage) (int, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range names {
		ok, err := s.Delete(ctx, name)
		if err != nil {
			return n, fmt.Errorf("delete %s: %w", name, err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}
