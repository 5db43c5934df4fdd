package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

// StoreOptions selects the conversation store backend.
type StoreOptions struct {
	// Type is "inmemory", "boltdb" or "sqlite".
	Type       string `json:"type"        mapstructure:"type"`
	BoltDBPath string `json:"boltdb-path" mapstructure:"boltdb-path"`
	SQLitePath string `json:"sqlite-path" mapstructure:"sqlite-path"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{
		Type:       "boltdb",
		BoltDBPath: "data/nexus.db",
		SQLitePath: "data/nexus.sqlite",
	}
}

func (o *StoreOptions) Validate() []error {
	var errs []error
	switch o.Type {
	case "inmemory", "boltdb", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("invalid store type %q, must be 'inmemory', 'boltdb' or 'sqlite'", o.Type))
	}
	if o.Type == "boltdb" && o.BoltDBPath == "" {
		errs = append(errs, fmt.Errorf("store.boltdb-path is required for the boltdb store"))
	}
	if o.Type == "sqlite" && o.SQLitePath == "" {
		errs = append(errs, fmt.Errorf("store.sqlite-path is required for the sqlite store"))
	}
	return errs
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Type, "store.type", o.Type, "Conversation store backend: inmemory, boltdb or sqlite.")
	fs.StringVar(&o.BoltDBPath, "store.boltdb-path", o.BoltDBPath, "BoltDB file path.")
	fs.StringVar(&o.SQLitePath, "store.sqlite-path", o.SQLitePath, "SQLite database path.")
}
