// internal/models/scope.go
package models

import (
	"github.com/lib/pq"
)

// TerritoryGlobal in a territory list overlaps every concrete territory.
const TerritoryGlobal = "GLOBAL"

// Scope is the usage grant of a license. It is a value object embedded in
// the license row, never a standalone entity.
type Scope struct {
	MediaDigital   bool `json:"media_digital" gorm:"default:false"`
	MediaPrint     bool `json:"media_print" gorm:"default:false"`
	MediaBroadcast bool `json:"media_broadcast" gorm:"default:false"`
	MediaOutOfHome bool `json:"media_out_of_home" gorm:"default:false"`

	PlacementSocial    bool `json:"placement_social" gorm:"default:false"`
	PlacementWeb       bool `json:"placement_web" gorm:"default:false"`
	PlacementEmail     bool `json:"placement_email" gorm:"default:false"`
	PlacementPaidAds   bool `json:"placement_paid_ads" gorm:"default:false"`
	PlacementPackaging bool `json:"placement_packaging" gorm:"default:false"`

	Territories pq.StringArray `json:"territories" gorm:"type:text[]"`

	ExclusivityCategory  string         `json:"exclusivity_category" gorm:"size:100"`
	BlockedCompetitorIDs pq.StringArray `json:"blocked_competitor_ids" gorm:"type:text[]"`

	CutdownAllowed     bool           `json:"cutdown_allowed" gorm:"default:false"`
	AspectRatios       pq.StringArray `json:"aspect_ratios" gorm:"type:text[]"`
	MaxDurationSeconds int            `json:"max_duration_seconds" gorm:"default:0"`

	AttributionRequired bool `json:"attribution_required" gorm:"default:true"`
}

// ScopeOverlap describes per-dimension intersection between two scopes.
type ScopeOverlap struct {
	Media     bool `json:"media"`
	Placement bool `json:"placement"`
	Territory bool `json:"territory"`
	Identical bool `json:"identical"`
}

// Any reports whether the scopes intersect on at least one dimension.
func (o ScopeOverlap) Any() bool {
	return o.Media || o.Placement || o.Territory
}

func (s Scope) mediaFlags() [4]bool {
	return [4]bool{s.MediaDigital, s.MediaPrint, s.MediaBroadcast, s.MediaOutOfHome}
}

func (s Scope) placementFlags() [5]bool {
	return [5]bool{s.PlacementSocial, s.PlacementWeb, s.PlacementEmail, s.PlacementPaidAds, s.PlacementPackaging}
}

// HasMedia reports whether at least one media flag is set.
func (s Scope) HasMedia() bool {
	for _, f := range s.mediaFlags() {
		if f {
			return true
		}
	}
	return false
}

// HasPlacement reports whether at least one placement flag is set.
func (s Scope) HasPlacement() bool {
	for _, f := range s.placementFlags() {
		if f {
			return true
		}
	}
	return false
}

// Overlaps computes per-dimension intersection with another scope.
// Territory comparison treats GLOBAL as overlapping every concrete
// territory. Identical is true only when every dimension matches exactly;
// it flags wasteful duplicate grants.
func (s Scope) Overlaps(other Scope) ScopeOverlap {
	var out ScopeOverlap

	sm, om := s.mediaFlags(), other.mediaFlags()
	for i := range sm {
		if sm[i] && om[i] {
			out.Media = true
			break
		}
	}

	sp, op := s.placementFlags(), other.placementFlags()
	for i := range sp {
		if sp[i] && op[i] {
			out.Placement = true
			break
		}
	}

	out.Territory = TerritoriesOverlap(s.Territories, other.Territories)
	out.Identical = s.Equal(other)
	return out
}

// TerritoriesOverlap reports whether two territory lists intersect.
// GLOBAL on either side overlaps any non-empty list.
func TerritoriesOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	for _, t := range a {
		if t == TerritoryGlobal {
			return true
		}
	}
	for _, t := range b {
		if t == TerritoryGlobal {
			return true
		}
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// IsGlobal reports whether the scope covers every territory.
func (s Scope) IsGlobal() bool {
	for _, t := range s.Territories {
		if t == TerritoryGlobal {
			return true
		}
	}
	return false
}

// Equal reports byte-for-byte equality across every scope dimension.
func (s Scope) Equal(other Scope) bool {
	if s.mediaFlags() != other.mediaFlags() || s.placementFlags() != other.placementFlags() {
		return false
	}
	if s.ExclusivityCategory != other.ExclusivityCategory ||
		s.CutdownAllowed != other.CutdownAllowed ||
		s.MaxDurationSeconds != other.MaxDurationSeconds ||
		s.AttributionRequired != other.AttributionRequired {
		return false
	}
	return stringSlicesEqual(s.Territories, other.Territories) &&
		stringSlicesEqual(s.BlockedCompetitorIDs, other.BlockedCompetitorIDs) &&
		stringSlicesEqual(s.AspectRatios, other.AspectRatios)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BlocksCompetitor reports whether the scope explicitly blocks a brand.
func (s Scope) BlocksCompetitor(brandID string) bool {
	for _, id := range s.BlockedCompetitorIDs {
		if id == brandID {
			return true
		}
	}
	return false
}
