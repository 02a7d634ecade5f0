// Package wire provides dependency injection for the foreman engine.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/example/foreman/internal/adapters/activitylog"
	"github.com/example/foreman/internal/adapters/gateway"
	"github.com/example/foreman/internal/adapters/git"
	"github.com/example/foreman/internal/adapters/sqlite"
	"github.com/example/foreman/internal/app"
	"github.com/example/foreman/internal/config"
	"github.com/example/foreman/internal/core/retry"
	"github.com/example/foreman/internal/db"
	"github.com/example/foreman/internal/locks"
	"github.com/example/foreman/internal/pipeline"
	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
	"github.com/example/foreman/internal/scheduler"
)

var (
	globalCfg         *config.Global
	projectService    primary.ProjectService
	runService        primary.RunService
	callbackService   primary.CallbackService
	escalationService primary.EscalationService
	activityLog       secondary.ActivityLog
	reviewChains      secondary.ReviewChainRepository
	jobScheduler      *scheduler.Scheduler
	once              sync.Once
)

// ProjectService returns the singleton ProjectService instance.
func ProjectService() primary.ProjectService {
	once.Do(initServices)
	return projectService
}

// RunService returns the singleton RunService instance.
func RunService() primary.RunService {
	once.Do(initServices)
	return runService
}

// CallbackService returns the singleton CallbackService instance.
func CallbackService() primary.CallbackService {
	once.Do(initServices)
	return callbackService
}

// EscalationService returns the singleton EscalationService instance.
func EscalationService() primary.EscalationService {
	once.Do(initServices)
	return escalationService
}

// ActivityLog returns the shared activity log reader.
func ActivityLog() secondary.ActivityLog {
	once.Do(initServices)
	return activityLog
}

// ReviewChains returns the review chain state reader, used by the CLI
// to display chain progress.
func ReviewChains() secondary.ReviewChainRepository {
	once.Do(initServices)
	return reviewChains
}

// Scheduler returns the durable job scheduler. The serve command rearms
// it at startup; everything else schedules through the services.
func Scheduler() *scheduler.Scheduler {
	once.Do(initServices)
	return jobScheduler
}

// GlobalConfig returns the resolved operator configuration.
func GlobalConfig() *config.Global {
	once.Do(initServices)
	return globalCfg
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cfg, err := config.LoadGlobal()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	globalCfg = cfg

	db.SetPath(cfg.DatabasePath)
	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// Repository adapters (secondary ports).
	projectRepo := sqlite.NewProjectRepository(database)
	runRepo := sqlite.NewRunRepository(database)
	taskRepo := sqlite.NewTaskRepository(database)
	phaseRepo := sqlite.NewPhaseStateRepository(database)
	retryRepo := sqlite.NewRetryStateRepository(database)
	escalationRepo := sqlite.NewEscalationRepository(database)
	reviewRepo := sqlite.NewReviewChainRepository(database)
	reviewChains = reviewRepo
	jobRepo := sqlite.NewJobRepository(database)

	// Outbound adapters.
	activityLog = activitylog.NewFileLog(cfg.LogDir)
	gitClient := git.NewClient()
	agentGateway, err := gateway.NewTmuxGateway(cfg.AgentCommand)
	if err != nil {
		log.Fatalf("failed to initialize tmux gateway: %v", err)
	}

	lockMgr := locks.NewManager()
	jobScheduler = scheduler.New(jobRepo, func(job *secondary.ScheduledJobRecord, err error) {
		log.Printf("scheduled job %s (%s) failed: %v", job.Key, job.Kind, err)
	})

	// Services (primary ports implementation).
	spawner := app.NewWorkerScheduler(taskRepo, gitClient, agentGateway, escalationRepo, activityLog, lockMgr, cfg.WorktreeDir)
	retryMgr := app.NewRetryManager(retryRepo, jobScheduler, retry.DefaultPolicy())
	merger := app.NewPhaseMerger(gitClient, phaseRepo, activityLog, lockMgr)
	reviews := app.NewReviewChainEngine(reviewRepo, escalationRepo, phaseRepo, agentGateway, activityLog)
	advancer := app.NewPhaseAdvancer(projectRepo, runRepo, taskRepo, phaseRepo, spawner, activityLog, pipeline.Load)

	projectService = app.NewProjectService(projectRepo, agentGateway, activityLog)
	runService = app.NewRunService(runRepo, projectRepo, advancer, spawner, activityLog, pipeline.Load)
	escalationService = app.NewEscalationService(escalationRepo)
	callbackService = app.NewCallbackService(runRepo, taskRepo, phaseRepo, escalationRepo, retryMgr, merger, reviews, advancer, spawner, activityLog, lockMgr, pipeline.Load)

	jobScheduler.Register(app.JobKindRetry, retryHandler(runRepo, spawner, activityLog))
}

// retryHandler respawns the worker for a fired retry timer. Timers for
// runs that are no longer running are dropped as inert.
func retryHandler(runs secondary.RunRepository, spawner *app.WorkerScheduler, logSink secondary.ActivityLog) scheduler.HandlerFunc {
	return func(ctx context.Context, job *secondary.ScheduledJobRecord) error {
		var payload app.RetryJobPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("invalid retry payload for %s: %w", job.Key, err)
		}
		run, err := runs.GetByID(ctx, job.RunID)
		if err != nil {
			return err
		}
		if run.Status != primary.RunStatusRunning {
			_ = logSink.Append(ctx, run.ProjectName, secondary.ActivityEntry{
				Type:    secondary.ActivityRetryDropped,
				Message: fmt.Sprintf("dropped retry for %s: run is %s", payload.TaskID, run.Status),
				Fields:  map[string]any{"runId": run.ID, "task": payload.TaskID},
			})
			return nil
		}
		return spawner.Respawn(ctx, run, payload.PhaseNumber, payload.TaskID)
	}
}
