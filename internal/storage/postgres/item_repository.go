package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

// ItemRepository stores items keyed by (host_system, host_item_id).
type ItemRepository struct {
	conn *Connection
}

// NewItemRepository wires an item repository to the shared connection.
func NewItemRepository(conn *Connection) (*ItemRepository, error) {
	if conn == nil {
		return nil, errors.New("postgres connection is required")
	}

	return &ItemRepository{conn: conn}, nil
}

// Find loads an item by its host-side identity. A missing item returns
// (nil, nil) so callers can distinguish absence from failure.
func (repo *ItemRepository) Find(ctx context.Context, hostSystem domain.HostSystem, hostItemID string) (*domain.Item, error) {
	exec, err := repo.conn.executor(ctx)
	if err != nil {
		return nil, fmt.Errorf("find item: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		SELECT host_system, host_item_id, description, item_category,
		       preferred_environment, packaging, owner, location, quantity
		FROM items
		WHERE host_system = $1 AND host_item_id = $2`

	row := exec.QueryRowContext(ctx, query, string(hostSystem), hostItemID)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, mapRepoError("find item", err)
	}

	return item, nil
}

// Create inserts a new item. A concurrent insert of the same identity
// surfaces as domain.ErrDuplicateResource.
func (repo *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	exec, err := repo.conn.executor(ctx)
	if err != nil {
		return fmt.Errorf("create item: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		INSERT INTO items (
			host_system, host_item_id, description, item_category,
			preferred_environment, packaging, owner, location, quantity,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

	_, err = exec.ExecContext(ctx, query,
		string(item.HostSystem),
		item.HostItemID,
		item.Description,
		string(item.Category),
		string(item.Environment),
		string(item.Packaging),
		item.Owner,
		item.Location,
		quantityArg(item.Quantity),
		time.Now().UTC(),
	)
	if err != nil {
		return mapRepoError("create item", err)
	}

	return nil
}

// Update replaces the mutable fields of an existing item.
func (repo *ItemRepository) Update(ctx context.Context, item *domain.Item) error {
	exec, err := repo.conn.executor(ctx)
	if err != nil {
		return fmt.Errorf("update item: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		UPDATE items
		SET description = $3, item_category = $4, preferred_environment = $5,
		    packaging = $6, owner = $7, location = $8, quantity = $9,
		    updated_at = $10
		WHERE host_system = $1 AND host_item_id = $2`

	result, err := exec.ExecContext(ctx, query,
		string(item.HostSystem),
		item.HostItemID,
		item.Description,
		string(item.Category),
		string(item.Environment),
		string(item.Packaging),
		item.Owner,
		item.Location,
		quantityArg(item.Quantity),
		time.Now().UTC(),
	)
	if err != nil {
		return mapRepoError("update item", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return mapRepoError("update item", err)
	}

	if affected == 0 {
		return domain.NewNotFoundError("item %q not found for host %q", item.HostItemID, string(item.HostSystem))
	}

	return nil
}

func quantityArg(quantity *decimal.Decimal) any {
	if quantity == nil {
		return nil
	}

	return quantity.String()
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var (
		item        domain.Item
		location    sql.NullString
		rawQuantity sql.NullString
	)

	err := row.Scan(
		&item.HostSystem,
		&item.HostItemID,
		&item.Description,
		&item.Category,
		&item.Environment,
		&item.Packaging,
		&item.Owner,
		&location,
		&rawQuantity,
	)
	if err != nil {
		return nil, err
	}

	if location.Valid {
		item.Location = &location.String
	}

	if rawQuantity.Valid {
		quantity, err := decimal.NewFromString(rawQuantity.String)
		if err != nil {
			return nil, fmt.Errorf("parse item quantity: %w", err)
		}

		item.Quantity = &quantity
	}

	return &item, nil
}
