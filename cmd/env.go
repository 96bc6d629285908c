package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/class1/graduate/internal/utils"
	"github.com/class1/graduate/pkg/session"
	"github.com/class1/graduate/pkg/shootingtime"
	"github.com/class1/graduate/pkg/storage"
	"github.com/class1/graduate/pkg/whttp"
)

// env is what every command that talks to the origin needs.
type env struct {
	db     *storage.DB
	dbPath string
	root   string
	cfg    session.Config
	lock   *utils.CacheLock
}

func newEnv() (*env, error) {
	root, err := utils.GetAbsStorageRoot(viper.GetString("storage"))
	if err != nil {
		return nil, fmt.Errorf("could not resolve storage root: %w", err)
	}
	dbPath, err := utils.GetAbsDBPath(viper.GetString("dbpath"))
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	client, err := whttp.NewClient(whttp.Options{
		RetryMax: viper.GetInt("http.retries"),
		Timeout:  viper.GetDuration("http.timeout"),
		Proxy:    viper.GetString("proxy"),
		Log:      utils.Log,
	})
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(dbPath, storage.DefaultDBTimeout)
	if err != nil {
		return nil, fmt.Errorf("could not open cache manifest %s: %w", dbPath, err)
	}

	return &env{
		db:     db,
		dbPath: dbPath,
		root:   root,
		cfg: session.Config{
			IndexURL:    viper.GetString("index_url"),
			Root:        root,
			Fetcher:     client,
			Recorder:    db,
			Concurrency: viper.GetInt("concurrency"),
			Log:         utils.Log,
		},
	}, nil
}

// hold locks the storage root until Close. Readers and fillers of the cache
// share it; clearing needs it exclusively.
func (e *env) hold(exclusive bool) error {
	if err := os.MkdirAll(filepath.Dir(e.root), 0o755); err != nil {
		return err
	}
	lock := utils.NewCacheLock(e.root)
	take := lock.Share
	if exclusive {
		take = lock.Exclusive
	}
	if err := take(); err != nil {
		return err
	}
	e.lock = lock
	return nil
}

func (e *env) Close() {
	e.db.Close()
	if e.lock != nil {
		e.lock.Unlock()
	}
}

// sessionConfig applies the --subject and --from flags, falling back to the
// config file.
func (e *env) sessionConfig(cmd *cobra.Command) (session.Config, error) {
	cfg := e.cfg

	subject, _ := cmd.Flags().GetInt("subject")
	if subject == 0 {
		subject = viper.GetInt("subject")
	}
	if subject <= 0 {
		return cfg, fmt.Errorf("no subject selected: pass --subject or set `subject` in the config file (see 'graduate roster')")
	}
	cfg.Subject = subject
	cfg.Log = utils.SubjectLogger(subject)

	from, _ := cmd.Flags().GetString("from")
	if from == "" {
		from = viper.GetString("from_date")
	}
	if from != "" {
		st, err := shootingtime.Parse(from)
		if err != nil {
			return cfg, err
		}
		cfg.From = st
	}
	return cfg, nil
}

func addSessionFlags(c *cobra.Command) {
	c.Flags().Int("subject", 0, "Id of the person whose timeline to build (see 'graduate roster')")
	c.Flags().String("from", "", "Start at the first event on or after this date (YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS)")
}
