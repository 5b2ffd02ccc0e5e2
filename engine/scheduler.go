package engine

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// InitializeSchedules starts all the cron jobs (currently just the job sweep).
// The returned cron should be stopped on shutdown.
func (serverHandler *ServerHandler) InitializeSchedules() (*cron.Cron, error) {
	interval := serverHandler.ServerConfig.JobSweepIntervalMinutes
	if interval <= 0 {
		interval = 5
	}

	c := cron.New()
	var sweepJob cron.Job
	sweepJob = cron.FuncJob(serverHandler.sweepJobs)
	sweepJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(sweepJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), sweepJob); err != nil {
		return nil, err
	}
	Logger.Info("Adding job sweep scheduler", "interval_minutes", interval, "retention_minutes", serverHandler.retention().Minutes())
	c.Start()
	return c, nil
}

func (serverHandler *ServerHandler) retention() time.Duration {
	minutes := serverHandler.ServerConfig.JobRetentionMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

// sweepJobs drops finished jobs past their retention so their images are freed
func (serverHandler *ServerHandler) sweepJobs() {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in job sweep", "panic", r)
		}
	}()

	count, err := serverHandler.Jobs.DeleteOldJobs(serverHandler.retention())
	if err != nil {
		Logger.Error("Failed to sweep old jobs", "error", err)
		return
	}
	if count > 0 {
		Logger.Info("Swept old jobs", "count", count)
	}
}
