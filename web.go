package main

import (
	"context"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func createRouter(ctx context.Context) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/v1/status", apiHandle(apiStatusGET)).Methods("GET")
	router.HandleFunc("/api/v1/block", apiHandle(apiBlockGET)).Methods("GET")
	router.HandleFunc("/api/v1/render", apiHandle(apiRenderPOST)).Methods("POST")
	router.HandleFunc("/api/v1/ws", wsProgressHandler(ctx))

	if cfgBool(true, "web", "metrics") {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	if cfgBool(false, "web", "debug") {
		router.HandleFunc("/stop", func(w http.ResponseWriter, _ *http.Request) {
			mainCtxCancel()
			w.WriteHeader(200)
			w.Write([]byte("Success"))
		}).Methods("GET")
		router.HandleFunc("/debug/pprof/", pprof.Index)
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		router.Handle("/debug/pprof/heap", pprof.Handler("heap"))
		router.Handle("/debug/pprof/allocs", pprof.Handler("allocs"))
		router.HandleFunc("/debug/gc", func(w http.ResponseWriter, r *http.Request) {
			runtime.GC()
			w.WriteHeader(200)
			w.Write([]byte("ok"))
		})
	}

	router1 := handlers.ProxyHeaders(router)
	router2 := handlers.CompressHandler(router1)
	router3 := handlers.CustomLoggingHandler(os.Stdout, router2, customLogger)
	router4 := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(router3)
	return router4
}

func runWeb(ctx context.Context) {
	addr := cfgString("0.0.0.0:3003", "web", "listen_addr")
	if addr == "" {
		log.Println("Not starting web server because listen address is empty")
		return
	}
	websrv := http.Server{
		Addr:              addr,
		Handler:           createRouter(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Println("Web server listens on " + addr)
	go func() {
		if err := websrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Web server returned an error: %s\n", err)
		}
	}()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := websrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Web server shutdown failed: %+v", err)
	}
}
