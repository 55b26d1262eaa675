package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/isometry/gh-tag-trigger/internal/config"
	"github.com/isometry/gh-tag-trigger/internal/consumer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func cmdKafka() *cobra.Command {
	return &cobra.Command{
		Use:   "kafka",
		Short: "Consume push payloads from Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger = logger.With("mode", config.ModeKafka)
			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return errors.Wrap(err, "failed to setup kafka consumer")
			}
			defer a.Close()
			a.reloadOnHangup(ctx)

			k, err := consumer.NewKafka(consumer.Config{
				Brokers:       config.Kafka.Brokers,
				Group:         config.Kafka.Group,
				Topics:        config.Kafka.Topics,
				OffsetReset:   config.Kafka.OffsetReset,
				SASLMechanism: config.Kafka.SASLMechanism,
				Username:      config.Kafka.Username,
				Password:      config.Kafka.Password,
				TLS:           config.Kafka.TLS,
			}, a.handler, consumer.WithLogger(logger.With("component", "consumer")))
			if err != nil {
				return err
			}
			defer k.Close()

			logger.Info("Consuming...", "brokers", config.Kafka.Brokers, "topics", config.Kafka.Topics, "group", config.Kafka.Group)
			return k.Run(ctx)
		},
	}
}
