package cmd

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/isometry/gh-tag-trigger/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func cmdLambda() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda function",
	}
	cmd.AddCommand(
		cmdLambdaHTTP(),
		cmdLambdaEvent(),
	)
	return cmd
}

// cmdLambdaHTTP is the command for running behind API Gateway or a function URL.
func cmdLambdaHTTP() *cobra.Command {
	return &cobra.Command{
		Use: "http",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger = logger.With("mode", config.ModeLambdaHTTP)
			a, err := newApp(contextOf(cmd))
			if err != nil {
				return errors.Wrap(err, "failed to setup lambda")
			}
			defer a.Close()

			logger.Info("lambda starting...")
			lambda.StartWithOptions(a.runtime().HandleEvent,
				lambda.WithContext(contextOf(cmd)))
			return nil
		},
	}
}

// cmdLambdaEvent is the command for running on EventBridge push events.
func cmdLambdaEvent() *cobra.Command {
	return &cobra.Command{
		Use: "event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger = logger.With("mode", config.ModeLambdaEvent)
			a, err := newApp(contextOf(cmd))
			if err != nil {
				return errors.Wrap(err, "failed to setup lambda")
			}
			defer a.Close()

			logger.Info("lambda starting...")
			lambda.StartWithOptions(a.runtime().HandleEventBridge,
				lambda.WithContext(contextOf(cmd)))
			return nil
		},
	}
}
