package device

import (
	"context"

	"github.com/henryproto/turnstile-emu/internal/catalog"
	"github.com/henryproto/turnstile-emu/internal/config"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
)

// catalogConfig composes the durable catalog store with the live
// configuration Store so the combined value satisfies both
// catalog.Catalog and management's optional configReader/configWriter
// extensions — the management dispatcher asserts those interfaces on
// whatever it's handed as its Catalog, and EC/RC need to be served by
// the same collaborator boundary as every other management command.
type catalogConfig struct {
	*catalog.Store
	cfg *config.Store
}

func (c *catalogConfig) ConfigValue(ctx context.Context, key command.ConfigKey) (string, bool, error) {
	return c.cfg.ConfigValue(ctx, key)
}

func (c *catalogConfig) SetConfigValue(ctx context.Context, key command.ConfigKey, value string) error {
	return c.cfg.SetConfigValue(ctx, key, value)
}
