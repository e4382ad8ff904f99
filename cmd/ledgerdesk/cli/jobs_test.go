package cli

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerdesk/jobs"
)

func TestTriggerTask(t *testing.T) {
	task, err := triggerTask(jobs.TaskMasterdataRefresh)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskMasterdataRefresh, task.Type())

	_, err = triggerTask(jobs.TaskDocumentPosted)
	require.Error(t, err)
}

func TestNewJobsCLIRequiresAddr(t *testing.T) {
	_, err := NewJobsCLI(asynq.RedisClientOpt{})
	require.Error(t, err)
}

func TestNilJobsCLI(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(t.Context(), jobs.TaskMasterdataRefresh)
	require.Error(t, err)
	_, err = c.InspectQueue(t.Context())
	require.Error(t, err)
}

func TestArchivedOfType(t *testing.T) {
	tasks := []*asynq.TaskInfo{
		{ID: "a", Type: jobs.TaskDocumentPosted},
		nil,
		{ID: "b", Type: jobs.TaskMasterdataRefresh},
		{ID: "c", Type: jobs.TaskDocumentPosted},
	}
	require.Equal(t, []string{"a", "c"}, archivedOfType(tasks, jobs.TaskDocumentPosted))
	require.Empty(t, archivedOfType(tasks, "unknown"))
}

func TestNilJobsCLICloses(t *testing.T) {
	var c *JobsCLI
	require.NoError(t, c.Close())
	_, err := c.RequeueArchived(t.Context(), jobs.TaskDocumentPosted)
	require.Error(t, err)
}
