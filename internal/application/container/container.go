// Package container provides dependency injection for all singleton services
package container

import (
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/application/services"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/persistence/partition"
	"github.com/AtRiskMedia/formrelay-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Core Services
	SessionService  *services.SessionService
	EntryService    *services.EntryService
	ApprovalService *services.ApprovalService
	ExportService   *services.ExportService
	ReaperService   *services.ReaperService

	// Infrastructure Dependencies
	Hub    *messaging.Hub
	DB     *database.DB
	Store  *partition.Store
	Logger *logging.ChanneledLogger

	// StoreDegraded is set when the backing store was unreachable at
	// startup; the HTTP and channel surfaces stay up and report it.
	StoreDegraded bool
}

// NewContainer creates and wires all singleton services
func NewContainer(logger *logging.ChanneledLogger) *Container {
	c := &Container{Logger: logger}

	db, err := database.Open(database.ConfigFromEnv(), logger)
	if err != nil {
		logger.Startup().Error("Backing store unavailable, starting degraded", "error", err.Error())
		c.StoreDegraded = true
	} else {
		c.DB = db
		store, err := partition.NewStore(db, logger)
		if err != nil {
			logger.Startup().Error("Partition schema creation failed, starting degraded", "error", err.Error())
			c.StoreDegraded = true
		} else {
			c.Store = store
		}
	}

	c.Hub = messaging.NewHub(time.Duration(config.SessionTickerSeconds)*time.Second, logger)

	c.SessionService = services.NewSessionService(c.Hub, logger)
	c.EntryService = services.NewEntryService(c.SessionService, c.Store, c.Hub, logger)

	var notifier email.Service
	if config.NotifyEmail != "" {
		notifier, err = email.NewService()
		if err != nil {
			logger.Startup().Warn("Notification email disabled", "error", err.Error())
			notifier = nil
		}
	}

	c.ApprovalService = services.NewApprovalService(
		c.EntryService,
		c.SessionService,
		c.Hub,
		time.Duration(config.ApprovalTimeoutSeconds)*time.Second,
		notifier,
		config.NotifyEmail,
		logger,
	)
	c.ExportService = services.NewExportService(c.EntryService, config.BulkExportHardMax, logger)
	c.ReaperService = services.NewReaperService(
		c.Store,
		time.Duration(config.ReapIntervalMinutes)*time.Minute,
		config.ReapInactiveDays,
		logger,
	)

	c.ApprovalService.SetObserverCounter(c.Hub.ObserverCount)

	// A closed channel marks its session inactive; pending approvals for
	// that identity stay live so in-flight decisions can still resolve.
	c.Hub.SetDisconnectFunc(c.SessionService.Unregister)
	c.Hub.SetSnapshotFunc(func() any { return c.SessionService.Snapshot() })

	return c
}

// Close releases infrastructure resources.
func (c *Container) Close() {
	if c.ApprovalService != nil {
		c.ApprovalService.Shutdown()
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
