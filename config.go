package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/maxsupermanhd/WebSchem/resource"
	"github.com/maxsupermanhd/lac"
)

var cfg *lac.Conf

func configPath() string {
	path := os.Getenv("WEBSCHEM_CONFIG")
	if path == "" {
		path = "config.json"
	}
	return path
}

func cfgInt(d int, p ...string) int {
	if cfg == nil {
		return d
	}
	return cfg.GetDSInt(d, p...)
}

func cfgBool(d bool, p ...string) bool {
	if cfg == nil {
		return d
	}
	return cfg.GetDSBool(d, p...)
}

func cfgString(d string, p ...string) string {
	if cfg == nil {
		return d
	}
	return cfg.GetDSString(d, p...)
}

func configuredPacks() ([]string, error) {
	paths := []string{}
	err := cfg.GetToStruct(&paths, "resources")
	if err != nil && !errors.Is(err, lac.ErrNoKey) {
		return nil, err
	}
	return paths, nil
}

func loadConfig() error {
	c, err := lac.FromFileJSON(configPath())
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

type resourcePacks struct {
	loader  resource.Loader
	dirs    []*resource.DirLoader
	closers []func() error
}

func (p *resourcePacks) Close() {
	for _, c := range p.closers {
		if err := c(); err != nil {
			log.Printf("Failed to close resource pack: %v", err)
		}
	}
}

// watch keeps directory packs in sync with the disk until ctx is done.
func (p *resourcePacks) watch(ctx context.Context) {
	for _, d := range p.dirs {
		d := d
		go func() {
			if err := d.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Resource watcher stopped: %v", err)
			}
		}()
	}
	<-ctx.Done()
}

// openResourcePacks opens the configured "resources" list, highest priority
// first. Archives (client jars, zipped packs) and extracted directories are
// both accepted.
func openResourcePacks(paths []string) (*resourcePacks, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no resource packs configured, set \"resources\" to a list of client jars or pack directories")
	}
	ret := &resourcePacks{}
	stack := resource.StackLoader{}
	logger := log.Default()
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			ret.Close()
			return nil, err
		}
		if st.IsDir() {
			d := resource.NewDirLoader(logger, p)
			ret.dirs = append(ret.dirs, d)
			stack = append(stack, d)
			log.Printf("Using resource directory %s", p)
			continue
		}
		if !strings.HasSuffix(p, ".jar") && !strings.HasSuffix(p, ".zip") {
			log.Printf("Resource pack %s is neither a directory nor a jar/zip, trying it as an archive", p)
		}
		z, err := resource.OpenZip(logger, p)
		if err != nil {
			ret.Close()
			return nil, fmt.Errorf("opening %s: %w", p, err)
		}
		ret.closers = append(ret.closers, z.Close)
		stack = append(stack, z)
		log.Printf("Using resource archive %s", p)
	}
	ret.loader = stack
	return ret, nil
}
