// Package main implements the entry point for the dispatchq server, which
// exposes the asynchronous priority task queue over HTTP for the content
// generation backend.
package main

import (
	"context"
	"log"
)

func main() {
	app, err := newApplication()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.scheduler.Start()

	router := app.setupRouter()
	if err := app.startHTTPServer(context.Background(), router); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
