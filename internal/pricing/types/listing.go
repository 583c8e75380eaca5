// Package types holds the shared data model for the auction pricing core:
// listings, demand signals, quality metrics, supply state, and the
// multiplier/auction-result shapes produced by the pricing engine.
package types

// ListingStatus is the lifecycle state of a marketplace listing. Only
// ACTIVE listings are priced.
type ListingStatus string

const (
	StatusActive     ListingStatus = "ACTIVE"
	StatusDraft      ListingStatus = "DRAFT"
	StatusPaused     ListingStatus = "PAUSED"
	StatusDeprecated ListingStatus = "DEPRECATED"
)

// Listing is the immutable-identity, mutable-pricing-parameters record
// the pricing core reads and writes against. Persistence and the rest of
// the listing lifecycle (slugs, categories, ownership) live outside this
// core; this is the subset the engine needs.
type Listing struct {
	ListingID         string
	Slug              string
	Name              string
	CategoryID        string
	FloorPriceUSDC    float64
	CeilingPriceUSDC  *float64
	CurrentPriceUSDC  float64
	CapacityPerMinute int
	Status            ListingStatus
}

// Active reports whether the listing should be included in a pricing
// cycle.
func (l Listing) Active() bool {
	return l.Status == StatusActive
}
