package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
)

// Outcome is what Show did with an input.
type Outcome string

const (
	OutcomeNoPermission Outcome = "no_permission"
	OutcomeFocused      Outcome = "focused" // user is already on the messages view
	OutcomeShown        Outcome = "shown"
	OutcomeReplaced     Outcome = "replaced"
	OutcomeFailed       Outcome = "failed"
)

// Dispatcher turns incoming messages into system notifications for one tab.
type Dispatcher struct {
	gate        *Gate
	presence    PresenceProvider
	tray        *Tray
	display     Display
	defaultIcon string
	log         *zap.Logger
}

func NewDispatcher(gate *Gate, presence PresenceProvider, tray *Tray, defaultIcon string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		gate:        gate,
		presence:    presence,
		tray:        tray,
		display:     tray.display,
		defaultIcon: defaultIcon,
		log:         log,
	}
}

// Gate exposes the permission gate, e.g. to refresh it on visibility changes.
func (d *Dispatcher) Gate() *Gate { return d.gate }

// Tray exposes the notification tray.
func (d *Dispatcher) Tray() *Tray { return d.tray }

// Show displays a notification for in unless permission is missing or the
// user is looking at the messages view. Display errors are logged only.
func (d *Dispatcher) Show(ctx context.Context, in Input) Outcome {
	outcome := d.show(ctx, in)
	metrics.Notifications.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (d *Dispatcher) show(ctx context.Context, in Input) Outcome {
	if !d.gate.Granted() {
		return OutcomeNoPermission
	}
	if d.presence != nil && d.presence.Presence().OnMessagesView() {
		return OutcomeFocused
	}
	if err := ctx.Err(); err != nil {
		return OutcomeFailed
	}

	n := Build(in, d.defaultIcon)
	replaced, err := d.tray.Show(n)
	if err != nil {
		d.log.Warn("showing notification failed",
			zap.String("conversation_id", in.ConversationID),
			zap.Error(err),
		)
		return OutcomeFailed
	}
	if replaced {
		return OutcomeReplaced
	}
	return OutcomeShown
}

// Click handles a click on the notification for tag: focus the tab, go to the
// notification's URL, then close it.
func (d *Dispatcher) Click(tag string) {
	url := MessagesPath
	if n, ok := d.tray.Get(tag); ok && n.Data.URL != "" {
		url = n.Data.URL
	}
	if err := d.display.Focus(); err != nil {
		d.log.Debug("focus failed", zap.Error(err))
	}
	if err := d.display.Navigate(url); err != nil {
		d.log.Debug("navigate failed", zap.String("url", url), zap.Error(err))
	}
	if !d.tray.Dismiss(tag) {
		// Already gone from the tray, the tab may still show it.
		if err := d.display.Close(tag); err != nil {
			d.log.Debug("closing notification failed", zap.String("tag", tag), zap.Error(err))
		}
	}
}

// Close releases the tray.
func (d *Dispatcher) Close() {
	d.tray.Close()
}
