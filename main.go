/*
	WebSchem, web server for block game schematics
	Copyright (C) 2022 Maxim Zhuchkov

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.

	Contact me via mail: q3.max.2011@yandex.ru or Discord: MaX#6717
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/maxsupermanhd/WebSchem/schematic"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BuildTime  = "00000000.000000"
	CommitHash = "0000000"
	GoVersion  = "0.0"
	GitTag     = "0.0"
)

var mainCtx, mainCtxCancel = context.WithCancel(context.Background())

func main() {
	renderPath := flag.String("render", "", "render a schematic file and exit instead of serving")
	outPath := flag.String("out", "scene.json", "where -render writes the scene, .json or .obj")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	buildinfo, ok := debug.ReadBuildInfo()
	if ok {
		GoVersion = buildinfo.GoVersion
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Println("Error loading .env file: " + err.Error())
	}
	err := loadConfig()
	if err != nil {
		log.Fatal("Error loading config file: " + err.Error())
	}
	log.SetOutput(io.MultiWriter(createLogger(), os.Stdout))
	log.Println()
	log.Println("WebSchem is starting up...")
	log.Printf("Built %s, Ver %s (%s)\n", BuildTime, GitTag, CommitHash)
	log.Println()

	if err := sessionMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatal("Failed to register metrics: " + err.Error())
	}
	paths, err := configuredPacks()
	if err != nil {
		log.Fatal("Error reading resource pack list: " + err.Error())
	}
	packs, err = openResourcePacks(paths)
	if err != nil {
		log.Fatal("Error opening resource packs: " + err.Error())
	}
	defer packs.Close()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		select {
		case <-c:
			log.Println("Interrupt recieved, shutting down")
			mainCtxCancel()
		case <-mainCtx.Done():
		}
	}()

	stopProgress := startBackgroundRoutine(mainCtx, "progress broadcaster", tasksProgressBroadcaster.Run)
	defer stopProgress()

	if *renderPath != "" {
		go logProgress(mainCtx)
		if err := renderToFile(mainCtx, *renderPath, *outPath); err != nil {
			log.Println("Render failed: " + err.Error())
			stopProgress()
			packs.Close()
			os.Exit(1)
		}
		return
	}

	if cfgBool(false, "watch_resources") {
		stopWatcher := startBackgroundRoutine(mainCtx, "resource watcher", packs.watch)
		defer stopWatcher()
	}
	stopWeb := startBackgroundRoutine(mainCtx, "web server", runWeb)
	defer stopWeb()

	<-mainCtx.Done()
}

func logProgress(ctx context.Context) {
	msgc := tasksProgressBroadcaster.Subscribe()
	defer tasksProgressBroadcaster.Unsubscribe(msgc)
	for {
		select {
		case m := <-msgc:
			if m.TaskTotal > 0 {
				log.Printf("%s: %s %d/%d (%d blocks/s, eta %ds)", m.TaskName, m.TaskStatus, m.TaskCompleted, m.TaskTotal, m.Speed, m.ETA)
			} else {
				log.Printf("%s: %s", m.TaskName, m.TaskStatus)
			}
		case <-ctx.Done():
			return
		}
	}
}

// renderToFile renders a schematic from disk. Next to out it writes the atlas
// image and, for OBJ output, the material library.
func renderToFile(ctx context.Context, in, out string) error {
	s, err := schematic.Open(in)
	if err != nil {
		return err
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	}
	task := newProgressTask(tasksProgressBroadcaster, "Render "+s.Name)
	res, err := renderSchematic(ctx, packs.loader, s, sessionOptions(), task)
	if err != nil {
		return err
	}
	if res.BuildErr != nil {
		log.Printf("Some blocks could not be built:\n%v", res.BuildErr)
	}
	base := strings.TrimSuffix(out, filepath.Ext(out))
	atlasPath := base + ".png"
	if err := writeFileWith(atlasPath, res.Sheet.EncodePNG); err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".obj":
		mtlPath := base + ".mtl"
		err = writeFileWith(mtlPath, func(w io.Writer) error {
			return writeMTL(w, res, filepath.Base(atlasPath))
		})
		if err != nil {
			return err
		}
		err = writeFileWith(out, func(w io.Writer) error {
			return writeOBJ(w, res, filepath.Base(mtlPath))
		})
	case ".json":
		err = writeFileWith(out, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "\t")
			return enc.Encode(exportScene(res))
		})
	default:
		return fmt.Errorf("unknown output format %q, use .json or .obj", filepath.Ext(out))
	}
	if err != nil {
		return err
	}
	log.Printf("Wrote %s and %s", out, atlasPath)
	return nil
}

func writeFileWith(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
