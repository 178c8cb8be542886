package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
)

// OrderRepository stores orders with their lines serialized as JSONB.
type OrderRepository struct {
	conn *Connection
}

// NewOrderRepository wires an order repository to the shared connection.
func NewOrderRepository(conn *Connection) (*OrderRepository, error) {
	if conn == nil {
		return nil, errors.New("postgres connection is required")
	}

	return &OrderRepository{conn: conn}, nil
}

// Find loads an order by its host-side identity. A missing order returns
// (nil, nil) so callers can distinguish absence from failure.
func (repo *OrderRepository) Find(ctx context.Context, hostSystem domain.HostSystem, hostOrderID string) (*domain.Order, error) {
	exec, err := repo.conn.executor(ctx)
	if err != nil {
		return nil, fmt.Errorf("find order: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		SELECT host_system, host_order_id, status, order_type, order_lines,
		       receiver_name, receiver_address, callback_url
		FROM orders
		WHERE host_system = $1 AND host_order_id = $2`

	row := exec.QueryRowContext(ctx, query, string(hostSystem), hostOrderID)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, mapRepoError("find order", err)
	}

	return order, nil
}

// Create inserts a new order. A concurrent insert of the same identity
// surfaces as domain.ErrDuplicateResource.
func (repo *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	exec, err := repo.conn.executor(ctx)
	if err != nil {
		return fmt.Errorf("create order: %w: %s", domain.ErrRepository, err)
	}

	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("create order: marshal order lines: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		INSERT INTO orders (
			host_system, host_order_id, status, order_type, order_lines,
			receiver_name, receiver_address, callback_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`

	_, err = exec.ExecContext(ctx, query,
		string(order.HostSystem),
		order.HostOrderID,
		string(order.Status),
		string(order.Type),
		lines,
		order.Receiver.Name,
		order.Receiver.Address,
		order.CallbackURL,
		time.Now().UTC(),
	)
	if err != nil {
		return mapRepoError("create order", err)
	}

	return nil
}

// Update replaces the mutable fields of an existing order.
func (repo *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	exec, err := repo.conn.executor(ctx)
	if err != nil {
		return fmt.Errorf("update order: %w: %s", domain.ErrRepository, err)
	}

	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("update order: marshal order lines: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		UPDATE orders
		SET status = $3, order_type = $4, order_lines = $5,
		    receiver_name = $6, receiver_address = $7, callback_url = $8,
		    updated_at = $9
		WHERE host_system = $1 AND host_order_id = $2`

	result, err := exec.ExecContext(ctx, query,
		string(order.HostSystem),
		order.HostOrderID,
		string(order.Status),
		string(order.Type),
		lines,
		order.Receiver.Name,
		order.Receiver.Address,
		order.CallbackURL,
		time.Now().UTC(),
	)
	if err != nil {
		return mapRepoError("update order", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return mapRepoError("update order", err)
	}

	if affected == 0 {
		return domain.NewNotFoundError("order %q not found for host %q", order.HostOrderID, string(order.HostSystem))
	}

	return nil
}

// Delete removes an order row.
func (repo *OrderRepository) Delete(ctx context.Context, hostSystem domain.HostSystem, hostOrderID string) error {
	exec, err := repo.conn.executor(ctx)
	if err != nil {
		return fmt.Errorf("delete order: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `DELETE FROM orders WHERE host_system = $1 AND host_order_id = $2`

	result, err := exec.ExecContext(ctx, query, string(hostSystem), hostOrderID)
	if err != nil {
		return mapRepoError("delete order", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return mapRepoError("delete order", err)
	}

	if affected == 0 {
		return domain.NewNotFoundError("order %q not found for host %q", hostOrderID, string(hostSystem))
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order    domain.Order
		rawLines []byte
	)

	err := row.Scan(
		&order.HostSystem,
		&order.HostOrderID,
		&order.Status,
		&order.Type,
		&rawLines,
		&order.Receiver.Name,
		&order.Receiver.Address,
		&order.CallbackURL,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rawLines, &order.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}

	return &order, nil
}
