// internal/scheduler/sweeper.go
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/licensecore/internal/apperrors"
	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/locks"
	"github.com/javajoker/licensecore/internal/models"
	"github.com/javajoker/licensecore/internal/services"
)

// Sweeper runs the periodic passes that advance time-dependent state:
// stale draft cleanup, expiry transitions, deadline expiry for amendments,
// extensions, and offers, milestone notifications, and auto-renewal.
// Every item is processed in isolation; one failure never aborts a pass.
type Sweeper struct {
	db       *gorm.DB
	config   *config.Config
	locks    *locks.Manager
	licenses *services.LicenseService
	renewals *services.RenewalService
	notifier services.Notifier
}

func NewSweeper(db *gorm.DB, cfg *config.Config, lockMgr *locks.Manager,
	licenses *services.LicenseService, renewals *services.RenewalService,
	notifier services.Notifier) *Sweeper {
	return &Sweeper{
		db:       db,
		config:   cfg,
		locks:    lockMgr,
		licenses: licenses,
		renewals: renewals,
		notifier: notifier,
	}
}

// Run executes sweeps on the configured interval until the context is
// canceled. The first sweep runs immediately.
func (s *Sweeper) Run(ctx context.Context) {
	interval := time.Duration(s.config.Sweep.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.WithField("interval", interval).Info("Sweeper started")

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs every pass once. Passes are ordered so that status
// transitions happen before the notifications that depend on them.
func (s *Sweeper) Sweep(ctx context.Context) {
	started := time.Now()

	passes := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{"stale_drafts", s.sweepStaleDrafts},
		{"expiring_soon", s.sweepExpiringSoon},
		{"expirations", s.sweepExpirations},
		{"amendment_deadlines", s.sweepAmendmentDeadlines},
		{"extension_deadlines", s.sweepExtensionDeadlines},
		{"offer_deadlines", s.sweepOfferDeadlines},
		{"milestones", s.sweepMilestones},
		{"auto_renewals", s.sweepAutoRenewals},
	}

	for _, pass := range passes {
		if ctx.Err() != nil {
			return
		}
		processed, err := pass.run(ctx)
		if err != nil {
			logrus.WithError(err).WithField("pass", pass.name).Error("Sweep pass failed")
			continue
		}
		if processed > 0 {
			logrus.WithFields(logrus.Fields{"pass": pass.name, "processed": processed}).Info("Sweep pass completed")
		}
	}

	logrus.WithField("duration", time.Since(started)).Debug("Sweep finished")
}

// forEachLicense fans license ids out to the worker pool and processes
// each in isolation.
func (s *Sweeper) forEachLicense(ctx context.Context, ids []uuid.UUID, fn func(context.Context, uuid.UUID) error) int {
	if len(ids) == 0 {
		return 0
	}

	workers := s.config.Sweep.Workers
	if workers > len(ids) {
		workers = len(ids)
	}

	work := make(chan uuid.UUID)
	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				if err := fn(ctx, id); err != nil {
					logrus.WithError(err).WithField("license_id", id).Warn("Sweep item failed")
					continue
				}
				mu.Lock()
				processed++
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return processed
		case work <- id:
		}
	}
	close(work)
	wg.Wait()
	return processed
}

func (s *Sweeper) licenseIDs(query *gorm.DB) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// draftStale reports whether a draft last touched at updatedAt has passed
// the staleness threshold.
func draftStale(updatedAt, now time.Time, staleDays int) bool {
	return updatedAt.Before(now.AddDate(0, 0, -staleDays))
}

// expiringSoonDue reports whether an active license has entered the expiry
// warning window.
func expiringSoonDue(endDate, now time.Time, warnDays int) bool {
	return !endDate.After(now.AddDate(0, 0, warnDays))
}

// expiryDue reports whether the term plus the per-license grace period has
// elapsed. The grace period defers the EXPIRED transition, not the renewal
// window.
func expiryDue(endDate time.Time, graceDays int, now time.Time) bool {
	return !endDate.AddDate(0, 0, graceDays).After(now)
}

// milestoneDue reports whether endDate sits inside a milestone's dispatch
// window: at or past the daysOut mark but not yet expired.
func milestoneDue(endDate, now time.Time, daysOut int) bool {
	return endDate.After(now) && !endDate.After(now.AddDate(0, 0, daysOut))
}

// licenseClock is the row shape the date-driven passes select: just enough
// to evaluate the decision predicates in memory.
type licenseClock struct {
	ID              uuid.UUID
	UpdatedAt       time.Time
	EndDate         time.Time
	GracePeriodDays int
}

func (s *Sweeper) licenseClocks(query *gorm.DB) ([]licenseClock, error) {
	var rows []licenseClock
	if err := query.Select("id", "updated_at", "end_date", "grace_period_days").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// sweepStaleDrafts cancels drafts untouched longer than the staleness
// threshold.
func (s *Sweeper) sweepStaleDrafts(ctx context.Context) (int, error) {
	now := time.Now()
	rows, err := s.licenseClocks(s.db.Model(&models.License{}).
		Where("status = ?", models.StatusDraft))
	if err != nil {
		return 0, err
	}

	var ids []uuid.UUID
	for _, row := range rows {
		if draftStale(row.UpdatedAt, now, s.config.Licensing.DraftStaleDays) {
			ids = append(ids, row.ID)
		}
	}

	return s.forEachLicense(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.licenses.Transition(ctx, id, models.StatusCanceled, nil, "draft stale beyond retention")
		return err
	}), nil
}

// sweepExpiringSoon moves ACTIVE licenses inside the expiry warning window
// to EXPIRING_SOON.
func (s *Sweeper) sweepExpiringSoon(ctx context.Context) (int, error) {
	now := time.Now()
	rows, err := s.licenseClocks(s.db.Model(&models.License{}).
		Where("status = ?", models.StatusActive))
	if err != nil {
		return 0, err
	}

	var ids []uuid.UUID
	for _, row := range rows {
		if expiringSoonDue(row.EndDate, now, s.config.Licensing.ExpiringSoonDays) {
			ids = append(ids, row.ID)
		}
	}

	return s.forEachLicense(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.licenses.Transition(ctx, id, models.StatusExpiringSoon, nil, "inside expiry warning window")
		return err
	}), nil
}

// sweepExpirations expires EXPIRING_SOON licenses whose term plus grace
// period has elapsed.
func (s *Sweeper) sweepExpirations(ctx context.Context) (int, error) {
	now := time.Now()
	rows, err := s.licenseClocks(s.db.Model(&models.License{}).
		Where("status = ?", models.StatusExpiringSoon))
	if err != nil {
		return 0, err
	}

	var ids []uuid.UUID
	for _, row := range rows {
		if expiryDue(row.EndDate, row.GracePeriodDays, now) {
			ids = append(ids, row.ID)
		}
	}

	return s.forEachLicense(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.licenses.Transition(ctx, id, models.StatusExpired, nil, "term ended")
		return err
	}), nil
}

// sweepAmendmentDeadlines expires pending amendments whose decision
// deadline has passed. The status guard makes the update idempotent under
// concurrent sweeps.
func (s *Sweeper) sweepAmendmentDeadlines(ctx context.Context) (int, error) {
	now := time.Now()
	res := s.db.Model(&models.Amendment{}).
		Where("status = ? AND deadline < ?", models.ApprovalStatusPending, now).
		Updates(map[string]interface{}{"status": models.ApprovalStatusExpired, "resolved_at": now})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// sweepExtensionDeadlines expires pending extensions past their deadline.
func (s *Sweeper) sweepExtensionDeadlines(ctx context.Context) (int, error) {
	now := time.Now()
	res := s.db.Model(&models.Extension{}).
		Where("status = ? AND deadline < ?", models.ApprovalStatusPending, now).
		Updates(map[string]interface{}{"status": models.ApprovalStatusExpired, "resolved_at": now})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// sweepOfferDeadlines expires pending renewal offers past their acceptance
// window.
func (s *Sweeper) sweepOfferDeadlines(ctx context.Context) (int, error) {
	now := time.Now()
	res := s.db.Model(&models.RenewalOffer{}).
		Where("status = ? AND expires_at < ?", models.OfferStatusPending, now).
		Updates(map[string]interface{}{"status": models.OfferStatusExpired, "resolved_at": now})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// milestoneSchedule maps each pre-expiry milestone to the days before the
// end date at which it fires.
var milestoneSchedule = []struct {
	milestone models.Milestone
	daysOut   int
}{
	{models.MilestoneRenewalOffer, 90},
	{models.MilestoneFirstReminder, 60},
	{models.MilestoneSecondReminder, 30},
	{models.MilestoneFinalNotice, 7},
}

// sweepMilestones dispatches pre-expiry notifications. Two layers make
// dispatch exactly-once-per-milestone under retries: a short-lived redis
// token deduplicates concurrent sweeps, and the unique (license_id,
// milestone) record deduplicates across restarts.
func (s *Sweeper) sweepMilestones(ctx context.Context) (int, error) {
	now := time.Now()
	total := 0

	for _, entry := range milestoneSchedule {
		rows, err := s.licenseClocks(s.db.Model(&models.License{}).
			Where("status IN ?",
				[]models.LicenseStatus{models.StatusActive, models.StatusExpiringSoon}).
			Where("id NOT IN (?)", s.db.Model(&models.NotificationRecord{}).
				Select("license_id").Where("milestone = ?", entry.milestone)))
		if err != nil {
			return total, err
		}

		var ids []uuid.UUID
		for _, row := range rows {
			if milestoneDue(row.EndDate, now, entry.daysOut) {
				ids = append(ids, row.ID)
			}
		}

		milestone := entry.milestone
		total += s.forEachLicense(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
			return s.dispatchMilestone(ctx, id, milestone)
		})
	}

	return total, nil
}

// claimAndSend delivers one notification at most once per idempotency key.
// A failed send releases the key so the next sweep retries the dispatch.
func claimAndSend(ctx context.Context, mgr *locks.Manager, notifier services.Notifier,
	key string, ttl time.Duration, template string, recipients []string,
	data map[string]interface{}) (string, bool, error) {
	claimed, err := mgr.ClaimIdempotencyToken(ctx, key, ttl)
	if err != nil {
		return "", false, err
	}
	if !claimed {
		return "", false, nil
	}

	deliveryID, err := notifier.Send(ctx, template, recipients, data)
	if err != nil {
		releaseToken(ctx, mgr, key)
		return "", false, err
	}
	return deliveryID, true, nil
}

func releaseToken(ctx context.Context, mgr *locks.Manager, key string) {
	if err := mgr.ReleaseIdempotencyToken(ctx, key); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to release idempotency token")
	}
}

func (s *Sweeper) dispatchMilestone(ctx context.Context, licenseID uuid.UUID, milestone models.Milestone) error {
	license, err := s.licenses.GetLicense(licenseID)
	if err != nil {
		return err
	}

	key := locks.IdempotencyKey(licenseID, string(milestone))
	ttl := time.Duration(s.config.Sweep.LockTTLSeconds) * time.Second

	var deliveryID string
	var sent bool
	if milestone == models.MilestoneRenewalOffer {
		claimed, err := s.locks.ClaimIdempotencyToken(ctx, key, ttl)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
		sent = true

		// The 90-day milestone generates the actual offer; CreateOffer
		// notifies the parties itself. Ineligible licenses still get the
		// milestone recorded so the sweep does not retry them forever.
		_, err = s.renewals.CreateOffer(ctx, licenseID, models.PricingAutomatic, services.UsageMetrics{})
		var vErr *apperrors.ValidationError
		if err != nil && !errors.As(err, &vErr) {
			releaseToken(ctx, s.locks, key)
			return err
		}
	} else {
		deliveryID, sent, err = claimAndSend(ctx, s.locks, s.notifier, key, ttl,
			string(milestone), s.milestoneRecipients(license), map[string]interface{}{
				"ReferenceNumber": license.ReferenceNumber,
				"EndDate":         license.EndDate.Format("2006-01-02"),
			})
		if err != nil {
			return err
		}
	}
	if !sent {
		return nil
	}

	record := &models.NotificationRecord{
		LicenseID:  licenseID,
		Milestone:  milestone,
		DeliveryID: deliveryID,
		SentAt:     time.Now(),
	}
	if err := s.db.Create(record).Error; err != nil {
		// Unique index hit means a concurrent sweep already recorded it.
		logrus.WithError(err).WithFields(logrus.Fields{
			"license_id": licenseID,
			"milestone":  milestone,
		}).Debug("Milestone record already present")
	}
	return nil
}

func (s *Sweeper) milestoneRecipients(license *models.License) []string {
	var brand models.Brand
	if err := s.db.First(&brand, license.BrandID).Error; err != nil || brand.ContactEmail == "" {
		return nil
	}
	return []string{brand.ContactEmail}
}

// sweepAutoRenewals runs unattended renewal for eligible licenses with
// auto-renew enabled that are inside the renewal window and have no
// standing successor. Voided successors do not count, matching the
// eligibility check.
func (s *Sweeper) sweepAutoRenewals(ctx context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, s.config.Licensing.RenewalWindowDays)
	ids, err := s.licenseIDs(s.db.Model(&models.License{}).
		Where("auto_renew = ? AND status IN ? AND end_date <= ?",
			true, []models.LicenseStatus{models.StatusActive, models.StatusExpiringSoon}, cutoff).
		Where("id NOT IN (?)", s.db.Model(&models.License{}).
			Select("parent_license_id").
			Where("parent_license_id IS NOT NULL AND status NOT IN ?", models.VoidedStatuses)))
	if err != nil {
		return 0, err
	}

	return s.forEachLicense(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		key := locks.IdempotencyKey(id, "auto_renew")
		ttl := time.Duration(s.config.Sweep.LockTTLSeconds) * time.Second
		claimed, err := s.locks.ClaimIdempotencyToken(ctx, key, ttl)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		if _, err := s.renewals.AutoRenew(ctx, id); err != nil {
			releaseToken(ctx, s.locks, key)
			return err
		}
		return nil
	}), nil
}
