// Command scalargrad trains tiny multi-layer perceptrons with the scalar
// autograd engine.
//
// Usage:
//
//	scalargrad train
//	scalargrad train --config train.yaml --optimizer adam --epochs 200
//	scalargrad serve --addr :8080
//
// Example requests against a running server:
//
//	curl -X POST localhost:8080/api/init -d '{"layers":[4,4,1]}'
//	curl -X POST localhost:8080/api/train \
//	  -d '{"inputs":[[2,3,-1],[3,-1,0.5]],"targets":[1,-1],"epochs":100}'
//	curl -X POST localhost:8080/api/predict -d '{"inputs":[[2,3,-1]]}'
//	curl localhost:8080/metrics
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
