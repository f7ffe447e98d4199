// internal/services/billing_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/customer"
	"gorm.io/gorm"

	"github.com/javajoker/licensecore/internal/apperrors"
	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/models"
)

// BillingService reads brand verification and payment standing. Strictly
// read-only: the core never initiates transfers or payouts.
type BillingService struct {
	db     *gorm.DB
	config *config.Config
}

// BrandStanding summarizes what the eligibility and budget checks need to
// know about a brand.
type BrandStanding struct {
	BrandID         uuid.UUID `json:"brand_id"`
	Verified        bool      `json:"verified"`
	PaymentFailures int       `json:"payment_failures"`
	Delinquent      bool      `json:"delinquent"`
}

func NewBillingService(db *gorm.DB, cfg *config.Config) *BillingService {
	// Initialize Stripe
	stripe.Key = cfg.Payment.StripeSecretKey

	return &BillingService{
		db:     db,
		config: cfg,
	}
}

func (s *BillingService) GetBrand(brandID uuid.UUID) (*models.Brand, error) {
	var brand models.Brand
	if err := s.db.First(&brand, brandID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "brand", EntityID: brandID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &brand, nil
}

// GetBrandStanding combines the directory record with the payment
// processor's delinquency signal. When Stripe is not configured or the
// lookup fails, the local record alone decides; billing outages must not
// block licensing.
func (s *BillingService) GetBrandStanding(brandID uuid.UUID) (*BrandStanding, error) {
	brand, err := s.GetBrand(brandID)
	if err != nil {
		return nil, err
	}

	standing := &BrandStanding{
		BrandID:         brand.ID,
		Verified:        brand.Verified(),
		PaymentFailures: brand.PaymentFailures,
	}

	if s.config.Payment.StripeSecretKey != "" && brand.StripeCustomerID != "" {
		cus, err := customer.Get(brand.StripeCustomerID, nil)
		if err != nil {
			logrus.WithError(err).WithField("brand_id", brandID).Warn("Stripe customer lookup failed, using local standing only")
		} else if cus.Delinquent {
			standing.Delinquent = true
		}
	}

	return standing, nil
}

// InPoorStanding reports whether the brand's payment history blocks
// renewal.
func (s *BillingService) InPoorStanding(brandID uuid.UUID) (bool, error) {
	standing, err := s.GetBrandStanding(brandID)
	if err != nil {
		return false, err
	}
	return standing.Delinquent || standing.PaymentFailures >= s.config.Licensing.PoorStandingFailures, nil
}
