package tenancy

import (
	"context"
	"fmt"
	"time"

	"github.com/pavitra93/go-multi-tenant-admin/shared/events"
	"github.com/pavitra93/go-multi-tenant-admin/shared/metrics"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ExpiryWatcher periodically reports active tenants whose subscription has
// lapsed. It only announces; login enforces expiry on its own.
type ExpiryWatcher struct {
	dir       *Directory
	publisher events.Publisher
	metrics   *metrics.Metrics
	schedule  string
	cron      *cron.Cron
	now       func() time.Time
}

func NewExpiryWatcher(dir *Directory, schedule string, publisher events.Publisher, m *metrics.Metrics) *ExpiryWatcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ExpiryWatcher{
		dir:       dir,
		publisher: publisher,
		metrics:   m,
		schedule:  schedule,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start schedules the scan
func (w *ExpiryWatcher) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.Scan(context.Background()); err != nil {
			logrus.WithError(err).Error("Tenant expiry scan failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	logrus.WithField("schedule", w.schedule).Info("Tenant expiry watcher started")
	return nil
}

// Stop halts scheduling; the returned context is done once a running scan finishes
func (w *ExpiryWatcher) Stop() context.Context {
	return w.cron.Stop()
}

// Scan returns the active non-root tenants whose subscription has passed
// and announces each one.
func (w *ExpiryWatcher) Scan(ctx context.Context) ([]models.Tenant, error) {
	tenants, err := w.dir.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	now := w.now()
	var expired []models.Tenant
	for i := range tenants {
		t := tenants[i]
		if !t.IsActive || !t.SubscriptionExpired(now) {
			continue
		}
		expired = append(expired, t)
		w.publisher.Publish(ctx, events.New(events.TenantSubscriptionExpired, t.ID, map[string]interface{}{
			"valid_up_to": t.ValidUpTo,
		}))
		logrus.WithFields(logrus.Fields{
			"tenant_id":   t.ID,
			"valid_up_to": t.ValidUpTo,
		}).Warn("Tenant subscription has expired")
	}

	w.metrics.SetExpiredTenants(len(expired))
	return expired, nil
}
