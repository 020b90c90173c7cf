package backup

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Adlikkk/gamehost-one/internal/config"
	"github.com/Adlikkk/gamehost-one/internal/models"
)

// schedulerInterval is how often the scheduler checks for due backups.
const schedulerInterval = 60 * time.Second

// Scheduler runs automatic backups for servers whose metadata enables them.
// A server is due when its interval has elapsed since the last backup, or,
// with a cron expression set, when the expression's next fire time since the
// last backup has passed. Due servers are backed up one at a time.
type Scheduler struct {
	registry *config.Registry
	meta     *config.MetaStore
	service  *Service
	interval time.Duration
	now      func() time.Time
}

// NewScheduler creates a scheduler over the given registry and service.
func NewScheduler(registry *config.Registry, meta *config.MetaStore, service *Service) *Scheduler {
	return &Scheduler{
		registry: registry,
		meta:     meta,
		service:  service,
		interval: schedulerInterval,
		now:      time.Now,
	}
}

// Start runs the scheduler loop in a background goroutine until ctx is done.
func (sc *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(sc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("[Scheduler] Stopping backup scheduler")
				return
			case <-ticker.C:
				sc.RunDue()
			}
		}
	}()
}

// RunDue backs up every server whose schedule is due.
func (sc *Scheduler) RunDue() {
	now := sc.now()
	for _, server := range sc.registry.GetAll() {
		meta, err := sc.meta.Get(server.ID)
		if err != nil {
			log.Printf("[Scheduler] Failed to load metadata for %s: %v", server.ID, err)
			continue
		}
		if !meta.AutoBackup {
			continue
		}

		due, err := backupDue(meta, server.CreatedAt, now)
		if err != nil {
			log.Printf("[Scheduler] Invalid schedule for server %s: %v", server.ID, err)
			continue
		}
		if !due {
			continue
		}

		log.Printf("[Scheduler] Running scheduled backup for server %s", server.ID)
		if _, err := sc.service.Backup(server.ID, true, "scheduled"); err != nil {
			log.Printf("[Scheduler] Backup failed for server %s: %v", server.ID, err)
		}
	}
}

// backupDue decides whether a server needs a backup at time now.
func backupDue(meta models.ServerMeta, createdAt, now time.Time) (bool, error) {
	last := createdAt
	if meta.LastBackupAt != nil {
		last = *meta.LastBackupAt
	}

	if meta.CronExpr != "" {
		schedule, err := cron.ParseStandard(meta.CronExpr)
		if err != nil {
			return false, err
		}
		return !schedule.Next(last).After(now), nil
	}

	if meta.IntervalMinutes <= 0 {
		return false, nil
	}
	return now.Sub(last) >= time.Duration(meta.IntervalMinutes)*time.Minute, nil
}
