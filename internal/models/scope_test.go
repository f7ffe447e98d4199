// internal/models/scope_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func digitalSocialScope(territories ...string) Scope {
	return Scope{
		MediaDigital:    true,
		PlacementSocial: true,
		Territories:     territories,
	}
}

func TestTerritoriesOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{"shared territory", []string{"US", "CA"}, []string{"CA", "MX"}, true},
		{"disjoint territories", []string{"US"}, []string{"JP"}, false},
		{"global on left", []string{TerritoryGlobal}, []string{"JP"}, true},
		{"global on right", []string{"US"}, []string{TerritoryGlobal}, true},
		{"both global", []string{TerritoryGlobal}, []string{TerritoryGlobal}, true},
		{"empty left never overlaps", nil, []string{TerritoryGlobal}, false},
		{"empty right never overlaps", []string{"US"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TerritoriesOverlap(tt.a, tt.b))
		})
	}
}

func TestScopeOverlaps(t *testing.T) {
	a := digitalSocialScope("US")
	b := digitalSocialScope("US")

	overlap := a.Overlaps(b)
	assert.True(t, overlap.Media)
	assert.True(t, overlap.Placement)
	assert.True(t, overlap.Territory)
	assert.True(t, overlap.Identical)
	assert.True(t, overlap.Any())
}

func TestScopeOverlapsDisjointDimensions(t *testing.T) {
	a := Scope{MediaDigital: true, PlacementSocial: true, Territories: []string{"US"}}
	b := Scope{MediaPrint: true, PlacementPackaging: true, Territories: []string{"JP"}}

	overlap := a.Overlaps(b)
	assert.False(t, overlap.Media)
	assert.False(t, overlap.Placement)
	assert.False(t, overlap.Territory)
	assert.False(t, overlap.Identical)
	assert.False(t, overlap.Any())
}

func TestScopeOverlapsPartial(t *testing.T) {
	a := Scope{MediaDigital: true, MediaPrint: true, PlacementSocial: true, Territories: []string{"US"}}
	b := Scope{MediaDigital: true, PlacementWeb: true, Territories: []string{"US", "CA"}}

	overlap := a.Overlaps(b)
	assert.True(t, overlap.Media)
	assert.False(t, overlap.Placement)
	assert.True(t, overlap.Territory)
	assert.False(t, overlap.Identical)
}

func TestScopeEqual(t *testing.T) {
	a := digitalSocialScope("US", "CA")
	b := digitalSocialScope("US", "CA")
	assert.True(t, a.Equal(b))

	b.AttributionRequired = true
	assert.False(t, a.Equal(b))

	c := digitalSocialScope("CA", "US") // order matters
	assert.False(t, a.Equal(c))
}

func TestScopeIsGlobal(t *testing.T) {
	assert.True(t, digitalSocialScope("US", TerritoryGlobal).IsGlobal())
	assert.False(t, digitalSocialScope("US", "CA").IsGlobal())
	assert.False(t, digitalSocialScope().IsGlobal())
}

func TestHasMediaAndPlacement(t *testing.T) {
	var empty Scope
	assert.False(t, empty.HasMedia())
	assert.False(t, empty.HasPlacement())

	assert.True(t, Scope{MediaOutOfHome: true}.HasMedia())
	assert.True(t, Scope{PlacementPaidAds: true}.HasPlacement())
}

func TestBlocksCompetitor(t *testing.T) {
	s := Scope{BlockedCompetitorIDs: []string{"brand-1", "brand-2"}}
	assert.True(t, s.BlocksCompetitor("brand-1"))
	assert.False(t, s.BlocksCompetitor("brand-3"))
	assert.False(t, Scope{}.BlocksCompetitor("brand-1"))
}
