// internal/services/ownership_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/licensecore/internal/apperrors"
	"github.com/javajoker/licensecore/internal/models"
)

// OwnershipService reads the external ownership/asset directory. All
// queries are read-only; the core never mutates ownership.
type OwnershipService struct {
	db *gorm.DB
}

func NewOwnershipService(db *gorm.DB) *OwnershipService {
	return &OwnershipService{db: db}
}

func (s *OwnershipService) GetAsset(assetID uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.First(&asset, assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "asset", EntityID: assetID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &asset, nil
}

// GetOwnershipRecords returns every non-transferred record for the asset,
// disputed ones included so callers can see why licensing is blocked.
func (s *OwnershipService) GetOwnershipRecords(assetID uuid.UUID) ([]models.OwnershipRecord, error) {
	var records []models.OwnershipRecord
	if err := s.db.Where("asset_id = ? AND status != ?", assetID, models.OwnershipStatusTransferred).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch ownership records: %w", err)
	}
	return records, nil
}

// HasActiveDispute reports whether any ownership record for the asset is
// disputed.
func (s *OwnershipService) HasActiveDispute(assetID uuid.UUID) (bool, error) {
	var count int64
	if err := s.db.Model(&models.OwnershipRecord{}).
		Where("asset_id = ? AND status = ?", assetID, models.OwnershipStatusDisputed).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check ownership disputes: %w", err)
	}
	return count > 0, nil
}

// ActiveOwnerIDs returns the owner ids behind every active, non-disputed
// record. These parties approve amendments and extensions.
func (s *OwnershipService) ActiveOwnerIDs(assetID uuid.UUID) ([]uuid.UUID, error) {
	records, err := s.GetOwnershipRecords(assetID)
	if err != nil {
		return nil, err
	}

	var owners []uuid.UUID
	for _, r := range records {
		if r.Status == models.OwnershipStatusActive {
			owners = append(owners, r.OwnerID)
		}
	}
	return owners, nil
}

// PrimaryOwnerID returns the asset's primary owner, the counter-signing
// party for license signatures.
func (s *OwnershipService) PrimaryOwnerID(assetID uuid.UUID) (uuid.UUID, error) {
	var record models.OwnershipRecord
	if err := s.db.Where("asset_id = ? AND is_primary = ? AND status = ?",
		assetID, true, models.OwnershipStatusActive).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, &apperrors.NotFoundError{Entity: "primary owner for asset", EntityID: assetID}
		}
		return uuid.Nil, fmt.Errorf("database error: %w", err)
	}
	return record.OwnerID, nil
}

// IsOwner reports whether the actor holds an active ownership record on
// the asset.
func (s *OwnershipService) IsOwner(assetID, actorID uuid.UUID) (bool, error) {
	var count int64
	if err := s.db.Model(&models.OwnershipRecord{}).
		Where("asset_id = ? AND owner_id = ? AND status = ?", assetID, actorID, models.OwnershipStatusActive).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return count > 0, nil
}
