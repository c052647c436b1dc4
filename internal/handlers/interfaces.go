package handlers

import (
	"context"

	"photopost-bot/internal/captions"
	"photopost-bot/internal/scheduler"
)

// Captioner generates a caption for photo bytes. *captions.Chain implements it.
type Captioner interface {
	Generate(ctx context.Context, img *captions.Image) captions.Result
}

// Cycler runs one publishing cycle on demand. *scheduler.Rotator implements it.
type Cycler interface {
	RunCycle(ctx context.Context, trigger string) (scheduler.CycleReport, error)
}
