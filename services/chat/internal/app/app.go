package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"wisechat/pkg/storage"
	"wisechat/pkg/store"
	"wisechat/pkg/upload"
)

const (
	defaultTokenTTL       = 30 * time.Minute
	defaultOpeningMessage = "Conversation started"
	defaultPageSize       = 100
)

// Config holds runtime configuration for the chat application.
type Config struct {
	DatabaseURL     string
	SecretKey       string
	TokenTTL        time.Duration
	FileStoragePath string
	RedisAddr       string
	RedisPassword   string
	// OpeningMessage is posted on behalf of every newly registered guest.
	OpeningMessage string

	Store    store.Store
	Sessions store.SessionStore
	Blobs    storage.BlobStore
	Now      func() time.Time
}

// App wires accounts, sessions, chats, and attachment storage together.
type App struct {
	store          store.Store
	sessions       store.SessionStore
	blobs          storage.BlobStore
	uploads        *upload.Generator
	now            func() time.Time
	openingMessage string
}

// New constructs the application, building default backends for anything not injected.
func New(cfg Config) (*App, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if strings.TrimSpace(cfg.OpeningMessage) == "" {
		cfg.OpeningMessage = defaultOpeningMessage
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		}
		jwtStore, err := store.NewJWTSessionStoreWithOptions(cfg.SecretKey, cfg.TokenTTL, revoker, store.JWTOptions{
			Now: cfg.Now,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	root := strings.TrimSpace(cfg.FileStoragePath)
	if root == "" {
		return nil, fmt.Errorf("file storage path required")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve file storage path: %w", err)
	}
	blobs := cfg.Blobs
	if blobs == nil {
		disk, err := storage.NewDiskStore(root)
		if err != nil {
			return nil, fmt.Errorf("init disk store: %w", err)
		}
		blobs = disk
	}

	return &App{
		store:          dataStore,
		sessions:       sessionStore,
		blobs:          blobs,
		uploads:        upload.NewGenerator(root),
		now:            cfg.Now,
		openingMessage: cfg.OpeningMessage,
	}, nil
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return limit
}
