// Package service holds the business workflows: appointment lifecycle,
// unit moderation, review aggregation and identity.  Services take the
// acting user explicitly, depend on repository.Store and the narrow
// collaborator interfaces (mail, storage, events), and return *apperr.Error
// values for every expected failure.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/logging"
	"github.com/iliyamo/college-housing/internal/mail"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/queue"
	"github.com/iliyamo/college-housing/internal/repository"
)

const dateLayout = "Mon, 02 Jan 2006"

// internalErr passes typed errors through and wraps anything else as Internal.
func internalErr(msg string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(msg, err)
}

// lookupErr maps a repository miss to NotFound(msg).
func lookupErr(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return internalErr("database lookup failed", err)
}

// notifier sends best-effort mail and publishes best-effort events.
// Failures are logged and never returned.
type notifier struct {
	mailer mail.Mailer
	events queue.Publisher
	log    logging.Logger
}

func (n notifier) mail(ctx context.Context, kind mail.Kind, to model.User, data mail.Data) {
	if to.Email == "" {
		return
	}
	if err := n.mailer.Send(ctx, kind, recipient(to), data); err != nil {
		n.log.Warn(ctx, "notification not delivered", "kind", string(kind), "user_id", to.ID, "err", err)
	}
}

func (n notifier) publish(ctx context.Context, ev queue.Event) {
	if n.events == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := n.events.Publish(ctx, ev); err != nil {
		n.log.Warn(ctx, "event not published", "type", ev.Type, "err", err)
	}
}

func recipient(u model.User) mail.Recipient {
	return mail.Recipient{Email: u.Email, Name: u.FullName}
}

func formatDates(ds []time.Time) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Format(dateLayout)
	}
	return out
}
