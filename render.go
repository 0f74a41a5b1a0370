package main

import (
	"context"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maxsupermanhd/WebSchem/renderSession"
	"github.com/maxsupermanhd/WebSchem/resource"
	"github.com/maxsupermanhd/WebSchem/schematic"
	"github.com/maxsupermanhd/WebSchem/textureAtlas"
)

var (
	packs          *resourcePacks
	sessionMetrics = renderSession.NewMetrics()
)

type renderResult struct {
	Schematic *schematic.Schematic
	Scene     *renderSession.Scene
	Sheet     *textureAtlas.Sheet
	Stats     renderSession.CacheStats
	Took      time.Duration
	// BuildErr holds the blocks that failed, the rest of the scene is usable.
	BuildErr error
}

func sessionOptions() renderSession.Options {
	var opts renderSession.Options
	if cfg != nil {
		opts = renderSession.OptionsFromConfig(log.Default(), cfg.SubTree("session"))
	}
	opts.Logger = log.Default()
	opts.Metrics = sessionMetrics
	return opts
}

func atlasTileSize() int {
	return cfgInt(textureAtlas.DefaultTileSize, "atlas", "tile_size")
}

// renderSchematic builds the scene of a schematic in a fresh session, packs the
// textures it used and drops the session caches afterwards.
func renderSchematic(ctx context.Context, loader resource.Loader, s *schematic.Schematic, opts renderSession.Options, progress *progressTask) (*renderResult, error) {
	started := time.Now()
	atlas := textureAtlas.New(loader, opts.Logger, atlasTileSize())
	opts.Handles = atlas
	opts.Releaser = atlas
	if progress != nil {
		opts.Progress = progress.Update
	}
	sess := renderSession.New(loader, opts)
	defer sess.Destroy()
	scene, err := sess.Build(ctx, s)
	if scene == nil {
		if progress != nil {
			progress.Finish("Failed: " + err.Error())
		}
		return nil, err
	}
	ret := &renderResult{
		Schematic: s,
		Scene:     scene,
		Sheet:     atlas.Pack(),
		Stats:     sess.Stats(),
		BuildErr:  err,
	}
	sess.ClearCache()
	ret.Took = time.Since(started)
	log.Printf("Rendered %q (%dx%dx%d, %s blocks) into %s placements, %d textures on a %dpx atlas in %s",
		s.Name, s.Width, s.Height, s.Length, humanize.Comma(int64(s.Volume())),
		humanize.Comma(int64(len(scene.Placements))), len(ret.Sheet.Regions), ret.Sheet.Size, ret.Took.Round(time.Millisecond))
	if progress != nil {
		progress.Finish("Done")
	}
	return ret, nil
}
