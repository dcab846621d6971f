package views

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
)

const (
	actionPrev = "prev"
	actionNext = "next"
)

// Show edits the message that holds a view, outside of a click.
type Show func(ctx context.Context, msg discord.MessageUpdate) error

// Paginator pages through embeds. Only the owner may turn pages.
type Paginator struct {
	registry *Registry
	pages    []discord.Embed
	ownerID  uint64
	timeout  time.Duration
}

// NewPaginator creates a Paginator over pages.
func (r *Registry) NewPaginator(pages []discord.Embed, ownerID uint64, timeout time.Duration) *Paginator {
	return &Paginator{registry: r, pages: pages, ownerID: ownerID, timeout: timeout}
}

// Run shows the first page and follows clicks until the view times out.
// The buttons are removed on return.
func (p *Paginator) Run(ctx context.Context, show Show) error {
	if len(p.pages) == 0 {
		return show(ctx, discord.MessageUpdate{Content: ptr("Nothing to show."), Components: &[]discord.LayoutComponent{}})
	}

	if len(p.pages) == 1 {
		return show(ctx, p.render(nil, 0))
	}

	view := p.registry.Open()
	defer view.Close()

	page := 0
	if err := show(ctx, p.render(view, page)); err != nil {
		return err
	}

	for {
		click, ok := view.Wait(ctx, p.timeout)
		if !ok {
			return show(context.WithoutCancel(ctx), p.render(nil, page))
		}

		if click.UserID != p.ownerID {
			_ = click.Ack()
			continue
		}

		switch click.Action {
		case actionPrev:
			page = (page - 1 + len(p.pages)) % len(p.pages)
		case actionNext:
			page = (page + 1) % len(p.pages)
		}

		if err := click.Update(p.render(view, page)); err != nil {
			return err
		}
	}
}

// render builds the update for one page. A nil view renders without buttons.
func (p *Paginator) render(view *View, page int) discord.MessageUpdate {
	embed := p.pages[page]
	if len(p.pages) > 1 {
		embed.Footer = &discord.EmbedFooter{Text: fmt.Sprintf("Page %d/%d", page+1, len(p.pages))}
	}

	components := []discord.LayoutComponent{}
	if view != nil {
		components = append(components, discord.NewActionRow(
			discord.NewSecondaryButton("◀", view.CustomID(actionPrev)),
			discord.NewSecondaryButton("▶", view.CustomID(actionNext)),
		))
	}

	return discord.MessageUpdate{
		Content:    ptr(""),
		Embeds:     &[]discord.Embed{embed},
		Components: &components,
	}
}

func ptr[T any](v T) *T {
	return &v
}
