package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_FirstFrameFlipsReadyOnce(t *testing.T) {
	p := NewPreview("dark")
	defer p.Close()
	require.NoError(t, p.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	readyCh := p.Ready().Subscribe(ctx)

	require.NoError(t, p.Render("graph TD\nA-->B"))
	require.NoError(t, p.Render("graph TD\nA-->C"), "second render must not re-signal")

	select {
	case <-readyCh:
	case <-time.After(time.Second):
		t.Fatal("no readiness notification")
	}
	select {
	case ev := <-readyCh:
		t.Fatalf("unexpected second readiness notification: %+v", ev)
	default:
	}

	// AwaitFirstRenderReady returns immediately once ready.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer waitCancel()
	assert.NoError(t, p.AwaitFirstRenderReady(waitCtx))
}

func TestPreview_AwaitBlocksUntilDeadline(t *testing.T) {
	p := NewPreview("dark")
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.AwaitFirstRenderReady(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPreview_ViewReflectsLastRender(t *testing.T) {
	p := NewPreview("dark")
	defer p.Close()
	require.NoError(t, p.Initialize(context.Background()))

	assert.Empty(t, p.View(), "no frame before the first render")

	require.NoError(t, p.Render("graph LR\nA-->B"))
	frame := p.View()
	assert.NotEmpty(t, frame)

	// Identical input is served from the frame cache.
	require.NoError(t, p.Render("graph LR\nA-->B"))
	assert.Equal(t, frame, p.View())
}

func TestPreview_InitializeRespectsCancellation(t *testing.T) {
	p := NewPreview("dark")
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Initialize(ctx), context.Canceled)
}

func TestFencedMermaid(t *testing.T) {
	assert.Equal(t, "```mermaid\ngraph TD\n```\n", fencedMermaid("graph TD"))
	assert.Equal(t, "```mermaid\ngraph TD\n```\n", fencedMermaid("graph TD\n"))
}
