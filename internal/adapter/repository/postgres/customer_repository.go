package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/V4T54L/customer-authz/internal/domain"
	"github.com/V4T54L/customer-authz/internal/pkg/sqlfilter"
)

//go:embed schema.sql
var schemaSQL string

const (
	customerColumns = "customer.id, customer.name, customer.comment, customer.private_key, customer.created"
	joinedColumns   = "c.id, c.name, c.comment, c.private_key, c.created"

	uniqueViolation = pq.ErrorCode("23505")
)

// CustomerRepository implements domain.CustomerRepository on PostgreSQL.
type CustomerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCustomerRepository creates a new PostgreSQL customer repository.
func NewCustomerRepository(db *sql.DB, logger *slog.Logger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger.With("component", "customer_repository")}
}

// EnsureSchema creates the tables and functions the repository relies on.
// It is safe to run on every start.
func (r *CustomerRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return r.storeErr("customer.ensure_schema", err)
	}
	return nil
}

// Create inserts a customer through the create_customer function so the
// insert and the returned row are one atomic statement.
func (r *CustomerRepository) Create(ctx context.Context, input domain.CustomerInput) (*domain.Customer, error) {
	const op = "customer.create"
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, comment, private_key, created FROM create_customer($1, $2, $3, $4)`,
		nullID(input.ID), input.Name, nullString(input.Comment), nullString(input.PrivateKey),
	)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, r.storeErr(op, err)
	}
	return c, nil
}

// GetByID fetches a customer by id within scope.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64, scope sqlfilter.Clause) (*domain.Customer, error) {
	q := sqlfilter.NewQuery("SELECT " + customerColumns + " FROM customer").
		Where(sqlfilter.Eq("customer.id", id)).
		Where(scope)
	return r.getOne(ctx, "customer.get_by_id", q)
}

// GetByName fetches a customer by its unique name within scope.
func (r *CustomerRepository) GetByName(ctx context.Context, name string, scope sqlfilter.Clause) (*domain.Customer, error) {
	q := sqlfilter.NewQuery("SELECT " + customerColumns + " FROM customer").
		Where(sqlfilter.Eq("customer.name", name)).
		Where(scope)
	return r.getOne(ctx, "customer.get_by_name", q)
}

// GetByProjectID fetches the customer owning a project. scope may reference
// the project as p and the customer as c.
func (r *CustomerRepository) GetByProjectID(ctx context.Context, projectID int64, scope sqlfilter.Clause) (*domain.Customer, error) {
	q := sqlfilter.NewQuery("SELECT " + joinedColumns + " FROM project p JOIN customer c ON p.customer = c.id").
		Where(sqlfilter.Eq("p.id", projectID)).
		Where(scope)
	return r.getOne(ctx, "customer.get_by_project", q)
}

func (r *CustomerRepository) getOne(ctx context.Context, op string, q *sqlfilter.Query) (*domain.Customer, error) {
	query, args := q.Build()
	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, op, nil)
		}
		return nil, r.storeErr(op, err)
	}
	return c, nil
}

// List returns the customers visible within scope, ordered by id.
func (r *CustomerRepository) List(ctx context.Context, filter domain.CustomerFilter, scope sqlfilter.Clause) ([]domain.Customer, error) {
	const op = "customer.list"
	q := sqlfilter.NewQuery("SELECT " + customerColumns + " FROM customer")
	if filter.CreatedAfter != nil {
		q.Where(sqlfilter.GreaterOrEqual("customer.created", *filter.CreatedAfter))
	}
	query, args := q.Where(scope).Suffix("ORDER BY customer.id").Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.storeErr(op, err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, r.storeErr(op, err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.storeErr(op, err)
	}
	return customers, nil
}

// Update applies patch and re-reads the row in the same transaction so the
// returned customer is the state this update produced.
func (r *CustomerRepository) Update(ctx context.Context, id int64, patch domain.CustomerPatch) (*domain.Customer, error) {
	const op = "customer.update"
	if patch.IsEmpty() {
		return nil, domain.Errorf(domain.KindValidation, op, "patch requires at least 1 attribute")
	}

	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	assign := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		assign("name", *patch.Name)
	}
	if patch.Comment != nil {
		assign("comment", nullString(patch.Comment))
	}
	if patch.PrivateKey != nil {
		assign("private_key", nullString(patch.PrivateKey))
	}
	args = append(args, id)
	update := fmt.Sprintf("UPDATE customer SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, r.storeErr(op, err)
	}
	defer txn.Rollback() // no-op after Commit

	res, err := txn.ExecContext(ctx, update, args...)
	if err != nil {
		return nil, r.storeErr(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, r.storeErr(op, err)
	}
	if affected == 0 {
		return nil, domain.Errorf(domain.KindNotFound, op, "no customer with id %d", id)
	}

	c, err := scanCustomer(txn.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customer WHERE customer.id = $1", id))
	if err != nil {
		return nil, r.storeErr(op, err)
	}
	if err := txn.Commit(); err != nil {
		return nil, r.storeErr(op, err)
	}
	return c, nil
}

// DeleteByName removes a customer through the delete_customer function.
func (r *CustomerRepository) DeleteByName(ctx context.Context, name string) error {
	const op = "customer.delete"
	var affected int64
	if err := r.db.QueryRowContext(ctx, `SELECT delete_customer($1)`, name).Scan(&affected); err != nil {
		return r.storeErr(op, err)
	}
	if affected == 0 {
		return domain.Errorf(domain.KindNotFound, op, "no customer named %q", name)
	}
	return nil
}

// DeleteAll truncates the customer table. Projects cannot exist without
// their owner, so TRUNCATE ... CASCADE removes every project row as well.
func (r *CustomerRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE customer CASCADE`); err != nil {
		return r.storeErr("customer.delete_all", err)
	}
	return nil
}

// Names returns every customer name, sorted.
func (r *CustomerRepository) Names(ctx context.Context) ([]string, error) {
	const op = "customer.names"
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM customer ORDER BY name`)
	if err != nil {
		return nil, r.storeErr(op, err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, r.storeErr(op, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, r.storeErr(op, err)
	}
	return names, nil
}

// storeErr classifies a driver error. Unique violations are conflicts,
// everything else is a store failure.
func (r *CustomerRepository) storeErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.Errorf(domain.KindConflict, op, "%s", pqErr.Detail)
	}
	r.logger.Error("customer store operation failed", "op", op, "error", err)
	return domain.E(domain.KindStore, op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var (
		c          domain.Customer
		comment    sql.NullString
		privateKey sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &comment, &privateKey, &c.Created); err != nil {
		return nil, err
	}
	if comment.Valid {
		c.Comment = &comment.String
	}
	if privateKey.Valid {
		c.PrivateKey = &privateKey.String
	}
	return &c, nil
}

// nullString maps an absent or empty optional to SQL NULL.
func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
