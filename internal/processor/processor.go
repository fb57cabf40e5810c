// Package processor decodes images, draws text watermarks on them and
// re-encodes the result in the format of the original file.
package processor

import (
	"context"
	"fmt"

	"github.com/aliskhannn/watermarker/internal/model"
)

// Processor runs the decode, render and encode steps for one item.
// It is safe for concurrent use.
type Processor struct {
	renderer *Renderer
}

// New creates a new Processor with the given renderer.
func New(r *Renderer) *Processor {
	return &Processor{renderer: r}
}

// Process watermarks a single input item according to cfg.
func (p *Processor) Process(ctx context.Context, item model.InputItem, cfg model.WatermarkConfig) (model.EncodedResult, error) {
	// Load the original bytes.
	src, err := item.Source.Open(ctx)
	if err != nil {
		e := model.NewError(model.ErrCollection, item.Path, fmt.Errorf("failed to open source: %w", err))
		e.Retryable = true
		return model.EncodedResult{}, e
	}
	defer src.Close()

	// Decode into an image object.
	img, err := Decode(src, item.Path)
	if err != nil {
		return model.EncodedResult{}, err
	}

	// Callers that pass a cancellable context skip the render of an item
	// whose run was cancelled during decode. The batch orchestrator hands
	// out a detached context, so its in-flight items always complete.
	if err := ctx.Err(); err != nil {
		return model.EncodedResult{}, model.NewError(model.ErrCancelled, item.Path, err)
	}

	// Draw the watermark on a copy of the image.
	marked, err := p.renderer.Render(img, cfg)
	if err != nil {
		return model.EncodedResult{}, model.NewError(model.ErrRender, item.Path, err)
	}

	// Encode in the original format.
	return Encode(marked, item.Path)
}
