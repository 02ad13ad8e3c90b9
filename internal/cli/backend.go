package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/nhle/kanban/internal/credential"
	"github.com/nhle/kanban/internal/gateway"
	"github.com/nhle/kanban/internal/gateway/firestoregw"
	"github.com/nhle/kanban/internal/gateway/memory"
	"github.com/nhle/kanban/internal/gateway/redisgw"
	"github.com/nhle/kanban/internal/model"
	"github.com/nhle/kanban/internal/store"
)

const connectTimeout = 10 * time.Second

// secrets is the part of the credential store the CLI uses.
type secrets interface {
	Lookup(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

var openSecrets = func() (secrets, error) {
	s, err := credential.Open()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// backend is an opened gateway plus whatever releases it.
type backend struct {
	gateway.Gateway
	close func() error
}

func (b backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// openBackend connects to the backend named in cfg.
func openBackend(ctx context.Context, cfg *model.AppConfig, logger log.FieldLogger) (backend, error) {
	switch cfg.Backend {
	case model.BackendMemory:
		return backend{Gateway: memory.New(logger)}, nil

	case model.BackendSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLite.Path,
			store.WithPollInterval(time.Duration(cfg.SQLite.PollIntervalSec)*time.Second),
			store.WithLogger(logger),
		)
		if err != nil {
			return backend{}, fmt.Errorf("opening sqlite board %s: %w", cfg.SQLite.Path, err)
		}
		return backend{Gateway: s, close: s.Close}, nil

	case model.BackendRedis:
		password := cfg.Redis.Password
		if password == "" {
			pw, err := lookupSecret(credential.KeyRedisPassword)
			if err != nil {
				return backend{}, err
			}
			password = pw
		}
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := rc.Ping(pingCtx).Err(); err != nil {
			_ = rc.Close()
			return backend{}, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		g := redisgw.New(rc, cfg.Redis.Prefix, logger)
		return backend{Gateway: g, close: g.Close}, nil

	case model.BackendFirestore:
		opts := firestoregw.Options{
			ProjectID:       cfg.Firestore.ProjectID,
			CredentialsFile: cfg.Firestore.CredentialsFile,
		}
		if opts.CredentialsFile == "" {
			creds, err := lookupSecret(credential.KeyFirestoreCredentials)
			if err != nil {
				return backend{}, err
			}
			opts.CredentialsJSON = []byte(creds)
		}
		g, err := firestoregw.Open(ctx, opts, logger)
		if err != nil {
			return backend{}, err
		}
		return backend{Gateway: g, close: g.Close}, nil
	}
	return backend{}, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// lookupSecret returns "" without error when the keyring has no entry or
// cannot be opened; the backend then falls back to its own defaults.
func lookupSecret(key string) (string, error) {
	s, err := openSecrets()
	if err != nil {
		log.WithError(err).Debug("keyring unavailable")
		return "", nil
	}
	v, ok, err := s.Lookup(key)
	if err != nil {
		return "", fmt.Errorf("reading %s from keyring: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}
