package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/patrickmn/go-cache"

	"github.com/Mustansir-06/MermaidPad/internal/log"
	"github.com/Mustansir-06/MermaidPad/internal/pubsub"
)

// ReadyEvent signals that the preview produced its first frame.
type ReadyEvent struct{}

// frameCacheTTL bounds how long a rendered frame stays reusable. Diagrams
// are re-rendered frequently while typing, so expired entries are cheap to
// rebuild.
const (
	frameCacheTTL     = 5 * time.Minute
	frameCachePurge   = 10 * time.Minute
	defaultWrapColumn = 80
)

// Preview renders Mermaid source as a styled fenced code block. It
// implements Surface. Render may be called from the dispatch loop while
// View is read from the program goroutine, so the frame is mutex-guarded.
type Preview struct {
	mu        sync.Mutex
	renderer  *glamour.TermRenderer
	style     string
	wrap      int
	lastFrame string
	lastErr   error

	frames *cache.Cache

	readyOnce sync.Once
	ready     *pubsub.Broker[ReadyEvent]
	readyCh   chan struct{}
}

// NewPreview creates a preview with the given glamour style name
// ("dark" or "light").
func NewPreview(style string) *Preview {
	return &Preview{
		style:   style,
		wrap:    defaultWrapColumn,
		frames:  cache.New(frameCacheTTL, frameCachePurge),
		ready:   pubsub.NewBroker[ReadyEvent](),
		readyCh: make(chan struct{}),
	}
}

// Ready returns the first-frame notification source.
func (p *Preview) Ready() *pubsub.Broker[ReadyEvent] { return p.ready }

// SetWrap changes the wrap column for subsequent frames.
func (p *Preview) SetWrap(width int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if width <= 0 || width == p.wrap {
		return
	}
	p.wrap = width
	p.renderer = nil
	p.frames.Flush()
}

// Initialize builds the glamour renderer. Safe to call once per lifecycle.
func (p *Preview) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initRendererLocked()
}

func (p *Preview) initRendererLocked() error {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(p.style),
		glamour.WithWordWrap(p.wrap),
	)
	if err != nil {
		return fmt.Errorf("building preview renderer: %w", err)
	}
	p.renderer = r
	return nil
}

// Render produces a frame for the given Mermaid source. The first
// successful frame flips the preview to ready exactly once.
func (p *Preview) Render(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.renderer == nil {
		if err := p.initRendererLocked(); err != nil {
			p.lastErr = err
			return err
		}
	}

	key := frameKey(p.wrap, text)
	if cached, ok := p.frames.Get(key); ok {
		p.lastFrame = cached.(string)
		p.lastErr = nil
		p.signalReady()
		return nil
	}

	frame, err := p.renderer.Render(fencedMermaid(text))
	if err != nil {
		p.lastErr = err
		log.ErrorErr(log.CatRender, err, "Preview render failed")
		return err
	}

	p.lastFrame = frame
	p.lastErr = nil
	p.frames.Set(key, frame, cache.DefaultExpiration)
	p.signalReady()
	return nil
}

// AwaitFirstRenderReady blocks until the first frame exists or ctx expires.
func (p *Preview) AwaitFirstRenderReady(ctx context.Context) error {
	select {
	case <-p.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns the most recent frame, or an error notice if the last
// render failed.
func (p *Preview) View() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastErr != nil {
		return fmt.Sprintf("preview unavailable: %v", p.lastErr)
	}
	return p.lastFrame
}

func (p *Preview) signalReady() {
	p.readyOnce.Do(func() {
		close(p.readyCh)
		p.ready.Publish(pubsub.ReadyEvent, ReadyEvent{})
		log.Info(log.CatRender, "Preview produced first frame")
	})
}

// Close shuts down the readiness notification source.
func (p *Preview) Close() {
	p.ready.Close()
}

func fencedMermaid(text string) string {
	var b strings.Builder
	b.WriteString("```mermaid\n")
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("```\n")
	return b.String()
}

func frameKey(wrap int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%d/%s", wrap, hex.EncodeToString(sum[:8]))
}
