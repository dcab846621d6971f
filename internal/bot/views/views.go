// Package views implements interactive button views. A view publishes the
// clicks it receives on a channel and its owner waits on them with a timeout.
package views

import (
	"context"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// customIDPrefix marks component custom ids owned by a view.
const customIDPrefix = "view:"

// Click is one button press on a view. Whoever consumes the click must
// answer it exactly once, with Update or Ack.
type Click struct {
	Action string
	UserID uint64
	// Update answers by editing the message that holds the view.
	Update func(msg discord.MessageUpdate) error
	// Ack answers without changing the message.
	Ack func() error
}

// Registry routes component interactions to live views.
type Registry struct {
	views *xsync.MapOf[string, chan Click]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{views: xsync.NewMapOf[string, chan Click]()}
}

// View is one live view. Close it when the owner stops waiting.
type View struct {
	registry *Registry
	id       string
	clicks   chan Click
}

// Open registers a new view.
func (r *Registry) Open() *View {
	v := &View{
		registry: r,
		id:       uuid.NewString(),
		clicks:   make(chan Click, 1),
	}
	r.views.Store(v.id, v.clicks)

	return v
}

// CustomID returns the custom id of a button that triggers action on the view.
func (v *View) CustomID(action string) string {
	return customIDPrefix + v.id + ":" + action
}

// Close unregisters the view. Later clicks are reported as expired.
func (v *View) Close() {
	v.registry.views.Delete(v.id)
}

// Wait returns the next click, or false once timeout passed or ctx ended.
func (v *View) Wait(ctx context.Context, timeout time.Duration) (Click, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-v.clicks:
		return c, true
	case <-timer.C:
		return Click{}, false
	case <-ctx.Done():
		return Click{}, false
	}
}

// Owns reports whether a custom id belongs to some view.
func Owns(customID string) bool {
	return strings.HasPrefix(customID, customIDPrefix)
}

// Deliver hands a click to the view named in customID. Returns false when
// the view expired or is still busy with an earlier click.
func (r *Registry) Deliver(
	customID string, userID uint64, update func(msg discord.MessageUpdate) error, ack func() error,
) bool {
	rest, ok := strings.CutPrefix(customID, customIDPrefix)
	if !ok {
		return false
	}

	id, action, ok := strings.Cut(rest, ":")
	if !ok {
		return false
	}

	clicks, ok := r.views.Load(id)
	if !ok {
		return false
	}

	select {
	case clicks <- Click{Action: action, UserID: userID, Update: update, Ack: ack}:
		return true
	default:
		return false
	}
}
