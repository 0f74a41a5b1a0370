package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maxsupermanhd/WebSchem/primitives"
	"github.com/maxsupermanhd/WebSchem/schematic"
)

var (
	dirpath    = flag.String("dir", "./schematics", "Directory with schematic files")
	match      = flag.String("match", "portal", "Substring of block id to look for")
	maxPos     = flag.Int("positions", 8, "How many positions to report per matching block, 0 reports only counts")
	outfname   = flag.String("out", "out.txt", "Filename for writing results to")
	threadsnum = flag.Int("threads", 3, "Thread count")
)

func must(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

func scan(path string, results chan<- string) error {
	s, err := schematic.Open(path)
	if err != nil {
		return err
	}
	matched := map[int32]primitives.Block{}
	for i, b := range s.Palette {
		if strings.Contains(b.ID, *match) {
			matched[int32(i)] = b
		}
	}
	if len(matched) == 0 || len(s.Data) == 0 {
		return nil
	}
	found := map[int32][]primitives.BlockPos{}
	counts := map[int32]int{}
	w, h, l := s.Size()
	for y := 0; y < h; y++ {
		for z := 0; z < l; z++ {
			for x := 0; x < w; x++ {
				i := s.Data[s.Index(x, y, z)]
				if _, ok := matched[i]; !ok {
					continue
				}
				counts[i]++
				if len(found[i]) < *maxPos {
					found[i] = append(found[i], primitives.BlockPos{X: x, Y: y, Z: z})
				}
			}
		}
	}
	for i, b := range matched {
		if counts[i] == 0 {
			log.Printf("%s: palette match %s is never placed", path, b.Key())
			continue
		}
		r := fmt.Sprintf("%s %dx%dx%d palette match %s placed %d times", path, w, h, l, b.Key(), counts[i])
		for _, p := range found[i] {
			r += "\n\tat " + p.String()
		}
		results <- r
	}
	return nil
}

func worker(wid int, jobs <-chan string, results chan<- string, wg *sync.WaitGroup) {
	log.Printf("Worker %d started", wid)
	defer wg.Done()
	filecount := 0
	for j := range jobs {
		filecount++
		if err := scan(j, results); err != nil {
			log.Printf("Worker %d failed to scan %s: %s", wid, j, err)
		}
	}
	log.Printf("Worker %d exits, processed %d schematics", wid, filecount)
}

func filewriter(results <-chan string, done chan<- struct{}) {
	log.Printf("Filewriter thread started")
	defer close(done)
	file, err := os.OpenFile(*outfname, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	must(err)
	defer file.Close()
	linecount := 0
	for r := range results {
		linecount++
		if !strings.HasSuffix(r, "\n") {
			r = r + "\n"
		}
		file.WriteString(r)
	}
	log.Printf("File writer exits, wrote %d results", linecount)
}

func main() {
	flag.Parse()
	if *match == "" {
		log.Fatalln("Match string not set")
	}
	var filelist []string
	for _, pattern := range []string{"*.schem", "*.schematic"} {
		m, err := filepath.Glob(filepath.Join(*dirpath, pattern))
		must(err)
		filelist = append(filelist, m...)
	}
	log.Printf("Scanning %d schematics for %q", len(filelist), *match)

	jobs := make(chan string, 64)
	results := make(chan string)
	written := make(chan struct{})
	wg := new(sync.WaitGroup)
	go filewriter(results, written)
	for w := 0; w < *threadsnum; w++ {
		wg.Add(1)
		go worker(w, jobs, results, wg)
	}
	starttime := time.Now()
	prevtime := time.Now()
	for i, f := range filelist {
		jobs <- f
		if time.Since(prevtime) > 1*time.Second {
			log.Printf("Queued %6d of %6d schematics (%06.2f%%)", i, len(filelist), float32(i)/float32(len(filelist))*100)
			prevtime = time.Now()
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	<-written

	log.Printf("Processed %d schematics in %s", len(filelist), time.Since(starttime).Round(time.Millisecond))
}
