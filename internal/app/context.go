package app

import (
	"log/slog"

	"github.com/noxchat/noxd/internal/cache"
	"github.com/noxchat/noxd/internal/directory"
)

// Context holds shared dependencies (Directory, Redis, Logger, etc.)
type Context struct {
	Directory  directory.Directory
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
}

// New creates a new Context
func New(dir directory.Directory, rdb *cache.RedisCache, logger *slog.Logger) *Context {
	return &Context{
		Directory:  dir,
		RedisCache: rdb,
		Logger:     logger,
	}
}
