package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/guidelint/pkg/fingerprint"
	"github.com/Sumatoshi-tech/guidelint/pkg/observability"
)

// stateFlags are the flags shared by the cache and progress commands.
type stateFlags struct {
	configPath string
	path       string
}

func (sf *stateFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&sf.configPath, "config", "", "Config file (default: .guidelint.yaml in the project)")
	cmd.PersistentFlags().StringVarP(&sf.path, "path", "p", ".", "Project root")
}

func (sf *stateFlags) load(cmd *cobra.Command) (*environment, error) {
	return loadEnvironment(cmd, sf.path, sf.configPath, observability.ModeCLI)
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	sf := &stateFlags{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the verdict cache",
	}

	sf.register(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache size and freshness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cacheStats(cmd, sf)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the cache file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cacheClear(cmd, sf)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Drop entries for files that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cachePrune(cmd, sf)
		},
	})

	return cmd
}

func cacheStats(cmd *cobra.Command, sf *stateFlags) error {
	env, err := sf.load(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	store, err := env.settings.CacheStore(env.root)
	if err != nil {
		return err
	}

	cache, err := store.Load()
	if err != nil {
		return err
	}

	// An unreadable guidelines file leaves every entry stale.
	guidelinesHash, _ := fingerprint.File(env.settings.GuidelinesPath(env.root))
	stats := cache.Stats(guidelinesHash)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Cache file:  %s\n", store.Path())
	fmt.Fprintf(out, "Entries:     %s (%s current, %s stale)\n",
		humanize.Comma(int64(stats.Entries)), humanize.Comma(int64(stats.Current)), humanize.Comma(int64(stats.Stale)))
	fmt.Fprintf(out, "Violations:  %s\n", humanize.Comma(int64(stats.Violations)))

	if stats.Entries > 0 {
		fmt.Fprintf(out, "Oldest:      %s\n", humanize.Time(stats.Oldest))
		fmt.Fprintf(out, "Newest:      %s\n", humanize.Time(stats.Newest))
	}

	return nil
}

func cacheClear(cmd *cobra.Command, sf *stateFlags) error {
	env, err := sf.load(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	store, err := env.settings.CacheStore(env.root)
	if err != nil {
		return err
	}

	if !store.Exists() {
		fmt.Fprintf(cmd.OutOrStdout(), "No cache at %s\n", store.Path())

		return nil
	}

	err = store.Clear()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", store.Path())

	return nil
}

func cachePrune(cmd *cobra.Command, sf *stateFlags) error {
	env, err := sf.load(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	store, err := env.settings.CacheStore(env.root)
	if err != nil {
		return err
	}

	cache, err := store.Load()
	if err != nil {
		return err
	}

	dropped := cache.Prune(func(rel string) bool {
		_, statErr := os.Stat(filepath.Join(env.root, filepath.FromSlash(rel)))

		return statErr == nil
	})

	if dropped > 0 {
		err = store.Save(cache)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d of %d entries\n", dropped, dropped+len(cache.Entries))

	return nil
}
