package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/seatwise/internal/backup"
	"github.com/julianstephens/seatwise/internal/booking"
	"github.com/julianstephens/seatwise/internal/config"
	"github.com/julianstephens/seatwise/internal/keyring"
	"github.com/julianstephens/seatwise/internal/logger"
	"github.com/julianstephens/seatwise/internal/storage"
	"github.com/julianstephens/seatwise/internal/storage/postgres"
	"github.com/julianstephens/seatwise/internal/storage/sqlite"
)

type Context struct {
	Store  storage.Provider
	Engine *booking.Engine
	Config config.Config
	// AssumeYes skips interactive confirmations.
	AssumeYes bool
}

// OpenStore builds the provider addressed by db without connecting. Postgres
// connection strings come from db or, when db is the literal "keyring", from
// the OS keyring; either way they must not embed a password.
func OpenStore(db string) (storage.Provider, error) {
	if db == "keyring" {
		connStr, _, err := keyring.Resolve("")
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, errors.New("no connection string in keyring; use 'seatwise keyring set' to store one")
			}
			return nil, err
		}
		db = connStr
	}

	if config.BackendFor(db) == config.BackendPostgres {
		if _, err := postgres.ValidateConnString(db); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, fmt.Errorf("%w; supply the password through PGPASSWORD, a .pgpass file or 'seatwise keyring set'", err)
			}
			return nil, err
		}
		return postgres.New(db), nil
	}

	path, err := config.ExpandHome(db)
	if err != nil {
		return nil, err
	}
	return sqlite.NewStore(path), nil
}

// IsSQLite reports whether the store is a local sqlite file, which is what
// backups operate on.
func (c *Context) IsSQLite() bool {
	_, ok := c.Store.(*sqlite.Store)
	return ok
}

// PerformAutomaticBackup snapshots a sqlite ledger before a destructive
// command. Failures are logged and do not interrupt the command.
func (c *Context) PerformAutomaticBackup() {
	if !c.IsSQLite() {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// ParseFields turns repeated name=v1,v2 flags into profile fields.
func ParseFields(pairs []string) (map[string][]string, error) {
	fields := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q, expected name=value[,value...]", pair)
		}
		var values []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		fields[name] = append(fields[name], values...)
	}
	return fields, nil
}
