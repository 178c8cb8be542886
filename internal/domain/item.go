package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// HostSystem identifies the external cataloguing system that owns an entity.
type HostSystem string

const (
	HostSystemAxiell HostSystem = "AXIELL"
	HostSystemAlma   HostSystem = "ALMA"
	HostSystemAsta   HostSystem = "ASTA"
	HostSystemMavis  HostSystem = "MAVIS"
)

// IsValid reports whether the host system is one of the known hosts.
func (hostSystem HostSystem) IsValid() bool {
	switch hostSystem {
	case HostSystemAxiell, HostSystemAlma, HostSystemAsta, HostSystemMavis:
		return true
	default:
		return false
	}
}

// ItemCategory is the material category of an item.
type ItemCategory string

const (
	ItemCategoryPaper ItemCategory = "PAPER"
	ItemCategoryDisc  ItemCategory = "DISC"
	ItemCategoryFilm  ItemCategory = "FILM"
	ItemCategoryOther ItemCategory = "OTHER"
)

// Environment is the preferred storage environment for an item.
type Environment string

const (
	EnvironmentNone   Environment = "NONE"
	EnvironmentFreeze Environment = "FREEZE"
)

// Packaging describes how an item is packed in storage.
type Packaging string

const (
	PackagingNone  Packaging = "NONE"
	PackagingBox   Packaging = "BOX"
	PackagingAbox  Packaging = "ABOX"
	PackagingCrate Packaging = "CRATE"
)

// Item is a storable object owned by a host cataloguing system.
// (HostSystem, HostItemID) is unique across the service.
//
// Location and Quantity are unknown until the storage system reports the item
// placed; by convention quantity is 1 when the item is in storage and 0 when
// it is out.
type Item struct {
	HostSystem  HostSystem       `json:"hostSystem"`
	HostItemID  string           `json:"hostId"`
	Description string           `json:"description"`
	Category    ItemCategory     `json:"itemCategory"`
	Environment Environment      `json:"preferredEnvironment"`
	Packaging   Packaging        `json:"packaging"`
	Owner       string           `json:"owner"`
	Location    *string          `json:"location,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
}

// NewItem validates the creation payload and returns an item with unknown
// location and quantity.
func NewItem(
	hostSystem HostSystem,
	hostItemID string,
	description string,
	category ItemCategory,
	environment Environment,
	packaging Packaging,
	owner string,
) (*Item, error) {
	if !hostSystem.IsValid() {
		return nil, NewValidationError("unknown host system %q", string(hostSystem))
	}

	if strings.TrimSpace(hostItemID) == "" {
		return nil, NewValidationError("host item id must not be blank")
	}

	if strings.TrimSpace(description) == "" {
		return nil, NewValidationError("item description must not be blank")
	}

	return &Item{
		HostSystem:  hostSystem,
		HostItemID:  hostItemID,
		Description: description,
		Category:    category,
		Environment: environment,
		Packaging:   packaging,
		Owner:       owner,
	}, nil
}

// Snapshot returns a deep copy, so recorded events never alias live state.
func (item *Item) Snapshot() Item {
	copied := *item

	if item.Location != nil {
		location := *item.Location
		copied.Location = &location
	}

	if item.Quantity != nil {
		quantity := *item.Quantity
		copied.Quantity = &quantity
	}

	return copied
}

// Place records the item arriving at a storage location with the given
// on-hand quantity.
func (item *Item) Place(location string, quantity decimal.Decimal) error {
	if strings.TrimSpace(location) == "" {
		return NewValidationError("location must not be blank")
	}

	if quantity.IsNegative() {
		return NewValidationError("quantity must not be negative")
	}

	item.Location = &location
	item.Quantity = &quantity

	return nil
}
