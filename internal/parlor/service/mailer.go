package service

import (
	"context"
	"log/slog"

	"github.com/quokkahq/parlor/pkg/slogx"
)

// LogMailer writes outgoing mail to the log instead of sending it. Used in
// development and tests; production wires a real delivery collaborator.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	slogx.FromContext(ctx).Info("outgoing mail",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
