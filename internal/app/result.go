package app

import "contextinsight/internal/model"

// Result is the outcome of a store operation. Callers branch on Success;
// failures never surface as Go errors.
type Result struct {
	Success bool                  `json:"success"`
	Data    *model.ContextInsight `json:"data,omitempty"`
	Message string                `json:"message,omitempty"`
	Error   string                `json:"error,omitempty"`

	// Err is the underlying cause of a failure, for errors.Is checks.
	Err error `json:"-"`
}

type ListResult struct {
	Success bool                   `json:"success"`
	Data    []model.ContextInsight `json:"data"`
	Error   string                 `json:"error,omitempty"`

	Err error `json:"-"`
}

func ok(data *model.ContextInsight) Result {
	return Result{Success: true, Data: data}
}

func fail(err error) Result {
	return Result{Success: false, Error: err.Error(), Err: err}
}
