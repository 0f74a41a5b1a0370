package main

import (
	"context"
	"log"
	"sync"
)

// startBackgroundRoutine runs workfn until the returned stop function (or the
// parent context) cancels it. Stop waits for workfn to return.
func startBackgroundRoutine(ctx context.Context, name string, workfn func(context.Context)) func() {
	log.Printf("Starting %s routine", name)
	rctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		workfn(rctx)
	}()
	return sync.OnceFunc(func() {
		log.Printf("Shutting down %s routine", name)
		cancel()
		log.Printf("Waiting for routine %s to exit", name)
		wg.Wait()
		log.Printf("Routine %s done", name)
	})
}
