package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/masig/pricebook/jobs"
)

func TestBuildTask(t *testing.T) {
	task, err := BuildTask(jobs.TaskActivityPrune, 90)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskActivityPrune, task.Type())

	var payload jobs.ActivityPrunePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 90, payload.RetentionDays)

	_, err = BuildTask(jobs.TaskActivityPrune, 0)
	require.Error(t, err)
	_, err = BuildTask("mail:send", 1)
	require.ErrorContains(t, err, "unsupported job")
}

func TestNilCLIReportsMisconfiguration(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), jobs.TaskActivityPrune, 30)
	require.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
	_, err = c.ListArchived(context.Background(), 0)
	require.Error(t, err)
	_, err = c.RunArchived(context.Background())
	require.Error(t, err)
}
