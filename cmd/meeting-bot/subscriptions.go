// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/messaging"
)

// createNatsSubscriptions subscribes the sweep handler to its trigger subject.
// The queue group makes each trigger run on a single replica.
func createNatsSubscriptions(ctx context.Context, natsConn *nats.Conn, sweepHandler domain.MessageHandler) error {
	subjects := []string{
		models.AutoInstallSweepSubject,
	}

	for _, subject := range subjects {
		_, err := natsConn.QueueSubscribe(subject, models.MeetingBotQueue, func(msg *nats.Msg) {
			m := messaging.NewNatsMsg(msg)
			sweepHandler.HandleMessage(m.Context(ctx), m)
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		slog.With("subject", subject, "queue", models.MeetingBotQueue).Info("subscribed to NATS subject")
	}

	return nil
}
