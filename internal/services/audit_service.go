// internal/services/audit_service.go
package services

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/licensecore/internal/models"
)

// AuditRecorder is the append-only audit contract. Write-only: the core
// never reads the trail back for decision-making, and a failed write never
// fails the mutation it describes.
type AuditRecorder interface {
	Record(entityType string, entityID uuid.UUID, action string, before, after models.JSONB, actorID *uuid.UUID)
}

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record appends an audit entry asynchronously.
func (s *AuditService) Record(entityType string, entityID uuid.UUID, action string, before, after models.JSONB, actorID *uuid.UUID) {
	entry := &models.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Before:     before,
		After:      after,
		ActorID:    actorID,
	}

	go func() {
		if err := s.db.Create(entry).Error; err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"entity_type": entityType,
				"entity_id":   entityID,
				"action":      action,
			}).Error("Failed to write audit log")
		}
	}()
}
