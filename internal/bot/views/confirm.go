package views

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
)

const (
	actionConfirm = "confirm"
	actionCancel  = "cancel"
)

// Confirm asks the owner to confirm an action. Returns true only when the
// owner pressed confirm before the timeout. The prompt is replaced by the
// outcome message.
func (r *Registry) Confirm(
	ctx context.Context, show Show, prompt string, ownerID uint64, timeout time.Duration,
) (bool, error) {
	view := r.Open()
	defer view.Close()

	components := []discord.LayoutComponent{discord.NewActionRow(
		discord.NewDangerButton("Confirm", view.CustomID(actionConfirm)),
		discord.NewSecondaryButton("Cancel", view.CustomID(actionCancel)),
	)}

	if err := show(ctx, discord.MessageUpdate{Content: &prompt, Components: &components}); err != nil {
		return false, err
	}

	for {
		click, ok := view.Wait(ctx, timeout)
		if !ok {
			return false, show(context.WithoutCancel(ctx), outcome("Timed out."))
		}

		if click.UserID != ownerID {
			_ = click.Ack()
			continue
		}

		if click.Action == actionConfirm {
			return true, click.Update(outcome("Confirmed."))
		}

		return false, click.Update(outcome("Cancelled."))
	}
}

func outcome(text string) discord.MessageUpdate {
	return discord.MessageUpdate{Content: &text, Components: &[]discord.LayoutComponent{}}
}
