package renderSession

import (
	"log"

	"github.com/maxsupermanhd/lac"
)

// OptionsFromConfig reads the session subtree of the configuration.
func OptionsFromConfig(logger *log.Logger, cfg *lac.ConfSubtree) Options {
	return Options{
		Workers:        positive(logger, cfg, DefaultWorkers, "workers"),
		Seed:           int64(cfg.GetDSInt(0, "seed")),
		Logger:         logger,
		MaxParentDepth: positive(logger, cfg, 32, "max_parent_depth"),
		MaxTextureHops: positive(logger, cfg, 16, "max_texture_hops"),
	}
}

func positive(l *log.Logger, c *lac.ConfSubtree, d int, p ...string) int {
	v := c.GetDSInt(d, p...)
	if v > 0 {
		return v
	}
	if l != nil {
		l.Printf("Non-positive %v, defaulting to %d!", p, d)
	}
	return d
}
