package cmd

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/isometry/gh-tag-trigger/internal/config"
	"github.com/isometry/gh-tag-trigger/internal/dispatch"
	"github.com/isometry/gh-tag-trigger/internal/registry"
	"github.com/isometry/gh-tag-trigger/internal/tagpush"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// matchReport describes a build a push would schedule.
type matchReport struct {
	Job        string              `json:"job"`
	Cause      trigger.CauseRecord `json:"cause"`
	Parameters []trigger.Parameter `json:"parameters"`
}

func cmdMatch() *cobra.Command {
	return &cobra.Command{
		Use:   "match <payload.json|->",
		Short: "Print the builds a push payload would schedule, without scheduling them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			reg, err := registry.NewFile(config.Trigger.Registry,
				registry.WithLogger(logger.With("component", "registry")))
			if err != nil {
				return err
			}
			matcher := trigger.NewMatcher(trigger.WithMatcherLogger(logger.With("component", "matcher")))

			reports, err := matchPayload(cmd, reg, matcher, body)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reports)
		},
	}
}

func readPayload(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		body, err := io.ReadAll(stdin)
		return body, errors.Wrap(err, "failed to read payload from stdin")
	}
	body, err := os.ReadFile(name)
	return body, errors.Wrapf(err, "failed to read payload %s", name)
}

func matchPayload(cmd *cobra.Command, reg trigger.Registry, matcher *trigger.Matcher, body []byte) ([]matchReport, error) {
	event, err := tagpush.Parse(body)
	if err != nil {
		return nil, err
	}
	reports := []matchReport{}
	if err = tagpush.Filter(event); err != nil {
		logger.Warn("push event is not relevant", slog.Any("reason", err))
		return reports, nil
	}
	snapshot, err := reg.Snapshot(contextOf(cmd), trigger.SystemContext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate jobs")
	}
	for _, m := range matcher.Match(contextOf(cmd), event, trigger.WithTrigger(snapshot)) {
		reports = append(reports, matchReport{
			Job:        m.Job.Name(),
			Cause:      m.Cause.Record(),
			Parameters: dispatch.MergeParameters(m.Job.DefaultParameters(), m.Cause),
		})
	}
	return reports, nil
}
