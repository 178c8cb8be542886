package outbox

import (
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
)

// DefaultKinds returns the event kinds a category reacts to.
//
// Catalog and storage follow entity lifecycle events; email reacts only to
// the receiver-facing sub-variants; statistics mirrors everything to the
// downstream broker.
func DefaultKinds(category Category) []domain.EventKind {
	switch category {
	case CategoryCatalog, CategoryStorage:
		return []domain.EventKind{
			domain.EventItemCreated,
			domain.EventItemUpdated,
			domain.EventOrderCreated,
			domain.EventOrderUpdated,
			domain.EventOrderDeleted,
		}
	case CategoryEmail:
		return []domain.EventKind{
			domain.EventOrderConfirmation,
			domain.EventOrderPickup,
			domain.EventOrderCancellation,
		}
	case CategoryStatistics:
		return domain.Kinds()
	default:
		return nil
	}
}

// CategoriesFor returns every category interested in an event kind. Each of
// them gets its own outbox record at write time, so one category delivering
// never consumes the event for the others.
func CategoriesFor(kind domain.EventKind) []Category {
	switch kind {
	case domain.EventItemCreated, domain.EventItemUpdated,
		domain.EventOrderCreated, domain.EventOrderUpdated, domain.EventOrderDeleted:
		return []Category{CategoryCatalog, CategoryStorage, CategoryStatistics}
	case domain.EventOrderConfirmation, domain.EventOrderPickup, domain.EventOrderCancellation:
		return []Category{CategoryEmail, CategoryStatistics}
	default:
		return nil
	}
}
