package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/datamon/datamon/internal/pipeline"
)

// programRef is a shared reference to the tea.Program.
// Because bubbletea copies the model on every Update, we need a pointer
// that survives copies so the bridge goroutine can send messages.
type programRef struct {
	mu      sync.RWMutex
	program *tea.Program
}

// SetProgram sets the tea.Program reference (thread-safe).
func (r *programRef) SetProgram(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

// Send sends a message to the bubbletea program (thread-safe).
func (r *programRef) Send(msg tea.Msg) {
	r.mu.RLock()
	p := r.program
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// liveSource is the slice of the pipeline the bridge consumes.
type liveSource interface {
	Updates() <-chan *pipeline.LiveSnapshot
}

// watchLive forwards pipeline snapshots into the program as LiveMsg until
// ctx is canceled. The pipeline's update channel is single-slot, so a busy
// UI only ever sees the newest snapshot.
func watchLive(ctx context.Context, ref *programRef, src liveSource) {
	for {
		select {
		case <-ctx.Done():
			ref.Send(PipelineStoppedMsg{Err: ctx.Err()})
			return
		case snap := <-src.Updates():
			ref.Send(LiveMsg{Snap: snap})
		}
	}
}
