package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"calendarinvitation/config"
	"calendarinvitation/internal/adapters/email"
	"calendarinvitation/internal/adapters/kafka"
	"calendarinvitation/internal/adapters/tzconv"
	"calendarinvitation/internal/domain"
	"calendarinvitation/internal/services"
)

// The notifier consumes event-created messages from the queue and emails the
// invitee named in each message.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	logger := config.NewLogger()

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:          cfg.SESRegion,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
		},
	}, logger)
	if err != nil {
		logger.Error("create mailer failed", "error", err)
		os.Exit(1)
	}

	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)
	converter := tzconv.New()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, domain.NewEventTopic, logger)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := func(ctx context.Context, msg *domain.NewEventMessage) error {
		start := msg.StartDate
		if local, err := converter.ToLocal(msg.StartDate, msg.Timezone); err == nil {
			start = local
		} else {
			logger.Warn("falling back to UTC start date", "event_id", msg.EventID, "error", err)
		}
		return emailService.SendEventInvitation(ctx, &domain.EventInvitationEmailData{
			Email:     msg.InviteeEmail,
			EventName: msg.Name,
			Details:   msg.Description,
			StartsOn:  start.Format("Monday, 02 January 2006"),
			StartsAt:  start.Format("03:04 PM"),
			Timezone:  msg.Timezone,
		})
	}

	if err := consumer.Run(ctx, handler); err != nil {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}
