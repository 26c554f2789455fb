package server

import "scalar-autograd/train"

// InitRequest is the payload for /api/init.
//
// All fields are optional; missing ones fall back to train.DefaultConfig().
// Nin is the input width and defaults to the default dataset's width.
type InitRequest struct {
	Nin          int     `json:"nin"`
	Layers       []int   `json:"layers"`
	Seed         *int64  `json:"seed"`
	Optimizer    string  `json:"optimizer"`
	LearningRate float64 `json:"learning_rate"`
}

// InitResponse reports the freshly built network.
type InitResponse struct {
	Status string `json:"status"`
	Params int    `json:"params"`
	RunID  string `json:"run_id"`
	Model  string `json:"model"`
}

// TrainRequest runs Epochs epochs over the given dataset. Epochs defaults
// to 1.
type TrainRequest struct {
	Inputs  [][]float64 `json:"inputs"`
	Targets []float64   `json:"targets"`
	Epochs  int         `json:"epochs"`
}

// TrainResponse reports the last completed epoch.
type TrainResponse struct {
	RunID string `json:"run_id"`
	train.StepResult
}

// PredictRequest carries input rows for a forward pass.
type PredictRequest struct {
	Inputs [][]float64 `json:"inputs"`
}

// PredictResponse holds one prediction per input row.
type PredictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
