package cron

import (
	"testing"
	"time"

	"Bazaar/internal/job"

	"github.com/stretchr/testify/assert"
)

func TestRegisterJobsRejectsBadSpec(t *testing.T) {
	mgr := NewCronManager(job.NewStaleModerationJob(nil, time.Minute), "not a spec")
	assert.Error(t, mgr.RegisterJobs())
}

func TestRegisterJobs(t *testing.T) {
	mgr := NewCronManager(job.NewStaleModerationJob(nil, time.Minute), "0 */5 * * * *")
	assert.NoError(t, mgr.RegisterJobs())
	assert.Len(t, mgr.engine.Entries(), 1)
}
