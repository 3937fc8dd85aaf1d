// Package render owns the preview side of the application: the rendering
// surface contract, the glamour-backed preview implementation, and the
// first-render lifecycle sequencer.
package render

import "context"

// Surface is the rendering component the sequencer drives. Initialize
// prepares assets, Render submits source text, and AwaitFirstRenderReady
// blocks until the first frame has been produced or ctx expires.
type Surface interface {
	Initialize(ctx context.Context) error
	Render(text string) error
	AwaitFirstRenderReady(ctx context.Context) error
}
