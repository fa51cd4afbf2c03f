// Command pathd runs the optical path manager of a SPARC microscope.
//
// It drives the actuators that route the light collected by the parabolic
// mirror to the camera, the spectrometers or the CL detector, records every
// transition, and serves the path over HTTP, WebSocket and MQTT.
//
//	pathd --config configs/config.yaml serve
//	pathd modes
//	pathd migrate
//	pathd token --subject gui --ttl 720h
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called explicitly above
	}
}
