package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mustansir-06/MermaidPad/internal/dispatch"
	"github.com/Mustansir-06/MermaidPad/internal/document"
)

// fakeSurface scripts the three lifecycle calls.
type fakeSurface struct {
	initErr    error
	renderErr  error
	readyErr   error // nil means ready immediately; context errors come from ctx
	neverReady bool

	initialized bool
	rendered    []string
}

func (f *fakeSurface) Initialize(ctx context.Context) error {
	f.initialized = true
	return f.initErr
}

func (f *fakeSurface) Render(text string) error {
	f.rendered = append(f.rendered, text)
	return f.renderErr
}

func (f *fakeSurface) AwaitFirstRenderReady(ctx context.Context) error {
	if f.neverReady {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.readyErr
}

// snapshot reads model state on the loop.
func snapshot(t *testing.T, loop *dispatch.Loop, fn func()) {
	t.Helper()
	require.NoError(t, loop.PostWait(fn))
}

func newSequencerFixture(t *testing.T, surface Surface) (*Sequencer, *dispatch.Loop, *document.Model) {
	t.Helper()
	loop := dispatch.NewLoop()
	t.Cleanup(loop.Stop)
	model := document.New()
	t.Cleanup(model.Close)

	snapshot(t, loop, func() { model.SetText("graph TD\nA-->B") })

	return NewSequencer(loop, model, surface), loop, model
}

func TestSequencer_HappyPath(t *testing.T) {
	surface := &fakeSurface{}
	seq, loop, model := newSequencerFixture(t, surface)

	require.NoError(t, seq.Run(context.Background()))

	assert.True(t, surface.initialized)
	require.Len(t, surface.rendered, 1)
	assert.Equal(t, "graph TD\nA-->B", surface.rendered[0])

	snapshot(t, loop, func() {
		assert.Equal(t, document.RenderReady, model.RenderState())
		assert.True(t, model.RenderUsable())
		assert.Empty(t, model.RenderWarning())
		assert.True(t, model.AutoRender(), "auto-render restored after the sequence")
	})
}

func TestSequencer_TimeoutDegradesButSucceeds(t *testing.T) {
	surface := &fakeSurface{neverReady: true}
	seq, loop, model := newSequencerFixture(t, surface)
	seq.SetReadyTimeout(20 * time.Millisecond)

	require.NoError(t, seq.Run(context.Background()), "a missed deadline is not an error")

	snapshot(t, loop, func() {
		assert.Equal(t, document.RenderTimedOut, model.RenderState())
		assert.True(t, model.RenderUsable(), "degraded sessions still allow render-gated commands")
		assert.Equal(t, TimeoutWarning, model.RenderWarning())
		assert.True(t, model.AutoRender())
	})
}

func TestSequencer_LateReadyAfterTimeoutIsIgnored(t *testing.T) {
	surface := &fakeSurface{neverReady: true}
	seq, loop, model := newSequencerFixture(t, surface)
	seq.SetReadyTimeout(20 * time.Millisecond)
	require.NoError(t, seq.Run(context.Background()))

	// A straggling readiness signal must not promote the state.
	snapshot(t, loop, func() {
		model.SetRenderState(document.RenderReady)
		assert.Equal(t, document.RenderTimedOut, model.RenderState())
	})
}

func TestSequencer_CancellationPropagates(t *testing.T) {
	surface := &fakeSurface{initErr: context.Canceled}
	seq, loop, model := newSequencerFixture(t, surface)

	err := seq.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	snapshot(t, loop, func() {
		assert.True(t, model.AutoRender(), "auto-render restored on the error path")
		assert.False(t, model.RenderUsable())
	})
}

func TestSequencer_AssetErrorsPropagateUnwrapped(t *testing.T) {
	for _, sentinel := range []error{ErrMissingAsset, ErrAssetIntegrity} {
		surface := &fakeSurface{initErr: sentinel}
		seq, _, _ := newSequencerFixture(t, surface)

		err := seq.Run(context.Background())
		assert.ErrorIs(t, err, sentinel)
	}
}

func TestSequencer_OtherInitErrorsAreWrapped(t *testing.T) {
	boom := errors.New("renderer exploded")
	surface := &fakeSurface{initErr: boom}
	seq, _, _ := newSequencerFixture(t, surface)

	err := seq.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSequencer_OuterCancellationDuringAwait(t *testing.T) {
	surface := &fakeSurface{neverReady: true}
	seq, _, _ := newSequencerFixture(t, surface)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := seq.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled, "closing mid-open is cancellation, not a timeout")
}
