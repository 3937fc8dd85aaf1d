package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mustansir-06/MermaidPad/internal/dispatch"
	"github.com/Mustansir-06/MermaidPad/internal/document"
	"github.com/Mustansir-06/MermaidPad/internal/log"
	"github.com/Mustansir-06/MermaidPad/internal/tracing"
)

// DefaultReadyTimeout is the ceiling on waiting for the preview's first
// frame before the session degrades.
const DefaultReadyTimeout = 30 * time.Second

// TimeoutWarning is the user-visible notice recorded when the preview
// misses its readiness deadline.
const TimeoutWarning = "Preview did not become ready in time; diagrams may render late."

// Sequencer runs the open-time render sequence: initialize the surface,
// push the first frame, and wait for readiness with a hard ceiling. The
// sequence blocks, so it runs on its own goroutine; all document mutations
// are posted onto the UI dispatch loop.
type Sequencer struct {
	loop    *dispatch.Loop
	model   *document.Model
	surface Surface
	timeout time.Duration
}

// NewSequencer creates a sequencer with the default readiness ceiling.
func NewSequencer(loop *dispatch.Loop, model *document.Model, surface Surface) *Sequencer {
	return &Sequencer{
		loop:    loop,
		model:   model,
		surface: surface,
		timeout: DefaultReadyTimeout,
	}
}

// SetReadyTimeout overrides the readiness ceiling. Non-positive values keep
// the default.
func (s *Sequencer) SetReadyTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Run executes the open sequence.
//
// Auto-render is captured and disabled for the duration so intermediate
// state changes cannot trigger renders mid-initialization, and restored on
// every exit path. A missed readiness deadline is not an error: the session
// degrades (state TimedOut, surface still usable, warning recorded) and Run
// returns nil. Cancellation and asset failures propagate; any other
// initialization failure is logged and returned.
func (s *Sequencer) Run(ctx context.Context) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "render.open",
		trace.WithAttributes(attribute.Int64("ready_timeout_ms", s.timeout.Milliseconds())))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var autoRender bool
	var text string
	if postErr := s.loop.PostWait(func() {
		autoRender = s.model.AutoRender()
		text = s.model.Text()
		s.model.SetAutoRender(false)
		s.model.SetRenderState(document.RenderPending)
	}); postErr != nil {
		return postErr
	}
	defer s.post(func() { s.model.SetAutoRender(autoRender) })

	if err := s.surface.Initialize(ctx); err != nil {
		return s.classify(err, "Preview initialization failed")
	}
	span.AddEvent("initialized")

	if err := s.surface.Render(text); err != nil {
		return s.classify(err, "First preview render failed")
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch waitErr := s.surface.AwaitFirstRenderReady(waitCtx); {
	case waitErr == nil:
		span.AddEvent("ready")
		s.post(func() {
			s.model.SetRenderState(document.RenderReady)
			s.model.SetRenderUsable(true)
		})
		return nil

	case errors.Is(waitErr, context.DeadlineExceeded) && ctx.Err() == nil:
		// The ceiling elapsed but the session goes on in degraded form.
		span.AddEvent("timed-out")
		log.Warn(log.CatRender, "Preview readiness deadline missed",
			"timeout", s.timeout.String())
		s.post(func() {
			s.model.SetRenderState(document.RenderTimedOut)
			s.model.SetRenderUsable(true)
			s.model.SetRenderWarning(TimeoutWarning)
		})
		return nil

	default:
		return waitErr
	}
}

// classify decides whether an initialization error propagates untouched.
func (s *Sequencer) classify(err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrMissingAsset) || errors.Is(err, ErrAssetIntegrity) {
		return err
	}
	log.ErrorErr(log.CatRender, err, msg)
	return fmt.Errorf("%s: %w", "opening preview", err)
}

// post schedules a model mutation on the UI loop, tolerating a stopped loop
// during shutdown.
func (s *Sequencer) post(fn func()) {
	if !s.loop.Post(fn) {
		log.Debug(log.CatRender, "Dropped model update, dispatch loop stopped")
	}
}
