package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/class1/graduate/internal/utils"
	"github.com/class1/graduate/pkg/storage"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the local photo cache",
}

// cacheStatsCmd represents the cache stats command
var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the cached photos and documents.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.db.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing has been cached yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "DIRECTORY\tFILES\tSIZE\t")

		var totalFiles int
		var totalBytes int64
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%s\t\n", s.Directory, s.AssetCount, humanize.Bytes(uint64(s.TotalBytes)))
			totalFiles += s.AssetCount
			totalBytes += s.TotalBytes
		}

		fmt.Fprintln(w, " \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t%s\t\n", totalFiles, humanize.Bytes(uint64(totalBytes)))

		return w.Flush()
	},
}

// cacheListCmd represents the cache list command
var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists cached files with their origin and last use.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")
		since, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")

		opts := storage.ListOptions{Prefix: prefix, Limit: limit}
		if since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return fmt.Errorf("invalid --since, expected RFC3339: %w", err)
			}
			opts.Since = t
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		assets, err := e.db.ListAssets(cmd.Context(), opts)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tSIZE\tHITS\tFETCHED\tLAST USED\t")
		for _, a := range assets {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t\n", a.Path, humanize.Bytes(uint64(a.Size)), a.Hits,
				humanize.Time(a.FetchedAt), humanize.Time(a.LastUsedAt))
		}
		return w.Flush()
	},
}

// cacheClearCmd represents the cache clear command
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Deletes every cached file, the cache manifest and saved positions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := utils.CheckRemovable(e.root); err != nil {
			return err
		}
		if err := e.hold(true); err != nil {
			return err
		}

		if err := os.RemoveAll(e.root); err != nil {
			return fmt.Errorf("could not delete %s: %w", e.root, err)
		}
		if err := e.db.Forget(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", e.root)
		return nil
	},
}

// cacheShellCmd represents the cache shell command
var cacheShellCmd = &cobra.Command{
	Use:   "shell [query]",
	Short: "Opens the cache manifest in sqlite3, read-only unless --write is given",
	Long: `Opens the cache manifest in the sqlite3 command line tool. With a query
argument the query is run and sqlite3 exits, e.g.

  graduate cache shell "select path, hits from assets order by hits desc limit 10"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := utils.GetAbsDBPath(viper.GetString("dbpath"))
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("no cache manifest at %s, nothing has been cached yet", dbPath)
		}

		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 was not found in PATH, install it to use the cache shell")
		}

		argv := []string{"-header", "-column"}
		if write, _ := cmd.Flags().GetBool("write"); !write {
			argv = append(argv, "-readonly")
		}
		argv = append(argv, dbPath)
		if len(args) == 1 {
			argv = append(argv, args[0])
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "Tables: assets (one row per cached file), progress (one row per person). Ctrl+D exits.\n")
		}

		c := exec.CommandContext(cmd.Context(), sqlitePath, argv...)
		c.Stdin = cmd.InOrStdin()
		c.Stdout = cmd.OutOrStdout()
		c.Stderr = cmd.ErrOrStderr()
		return c.Run()
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShellCmd)

	cacheListCmd.Flags().String("prefix", "", "Only list logical paths starting with this prefix (e.g. /image/2021)")
	cacheListCmd.Flags().String("since", "", "Only list files fetched since this RFC3339 timestamp")
	cacheListCmd.Flags().Int("limit", 0, "Maximum number of rows (0 = all)")
	cacheShellCmd.Flags().Bool("write", false, "Open the manifest writable")
}
