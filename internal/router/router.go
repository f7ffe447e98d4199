// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/models"
	"github.com/javajoker/licensecore/internal/services"
	"github.com/javajoker/licensecore/internal/utils"
)

// SetupRouter wires the operational HTTP surface: health, the standalone
// conflict preview, and portfolio statistics. The full entity CRUD lives
// behind the platform gateway, not here.
func SetupRouter(db *gorm.DB, cfg *config.Config,
	conflicts *services.ConflictService, licenses *services.LicenseService) *gin.Engine {

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	r.GET("/health", healthHandler(db))

	v1 := r.Group("/v1")
	{
		v1.POST("/conflicts/preview", conflictPreviewHandler(conflicts))
		v1.GET("/statistics", statisticsHandler(licenses))
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Info("Request handled")
	}
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC()})
	}
}

// ConflictPreviewRequest describes a hypothetical license for the
// standalone conflict check. Nothing is persisted.
type ConflictPreviewRequest struct {
	AssetID          uuid.UUID          `json:"asset_id" validate:"required"`
	BrandID          uuid.UUID          `json:"brand_id" validate:"required"`
	LicenseType      models.LicenseType `json:"license_type" validate:"required"`
	StartDate        time.Time          `json:"start_date" validate:"required"`
	EndDate          time.Time          `json:"end_date" validate:"required,gtfield=StartDate"`
	Scope            models.Scope       `json:"scope"`
	ExcludeLicenseID *uuid.UUID         `json:"exclude_license_id,omitempty"`
}

func conflictPreviewHandler(conflicts *services.ConflictService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConflictPreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			if errs := utils.GetValidationErrors(err); len(errs) > 0 {
				c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			} else {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}

		probe := &models.License{
			AssetID:     req.AssetID,
			BrandID:     req.BrandID,
			LicenseType: req.LicenseType,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
			Scope:       req.Scope,
		}

		found, err := conflicts.DetectConflicts(probe, req.ExcludeLicenseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "conflict detection failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"conflicts":    found,
			"has_critical": services.HasCritical(found),
		})
	}
}

func statisticsHandler(licenses *services.LicenseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := licenses.GetStatistics()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute statistics"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
