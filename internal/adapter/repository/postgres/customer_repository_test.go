package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/V4T54L/customer-authz/internal/domain"
	"github.com/V4T54L/customer-authz/internal/pkg/sqlfilter"
)

var customerCols = []string{"id", "name", "comment", "private_key", "created"}

func newTestRepo(t *testing.T) (*CustomerRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCustomerRepository(db, logger), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestCustomerRepository_Create(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Absent optionals are bound as NULL", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM create_customer($1, $2, $3, $4)`)).
			WithArgs(int64(1), "acme", nil, nil).
			WillReturnRows(sqlmock.NewRows(customerCols).AddRow(int64(1), "acme", nil, nil, created))

		c, err := repo.Create(context.Background(), domain.CustomerInput{ID: 1, Name: "acme"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.ID != 1 || c.Name != "acme" || c.Comment != nil || !c.Created.Equal(created) {
			t.Errorf("unexpected customer %+v", c)
		}
		expectationsMet(t, mock)
	})

	t.Run("Provided optionals and system id", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		comment, key := "big one", "ssh-ed25519 AAAA"
		mock.ExpectQuery(regexp.QuoteMeta(`FROM create_customer($1, $2, $3, $4)`)).
			WithArgs(nil, "globex", comment, key).
			WillReturnRows(sqlmock.NewRows(customerCols).AddRow(int64(7), "globex", comment, key, created))

		c, err := repo.Create(context.Background(), domain.CustomerInput{Name: "globex", Comment: &comment, PrivateKey: &key})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.ID != 7 || c.Comment == nil || *c.Comment != comment || c.PrivateKey == nil {
			t.Errorf("unexpected customer %+v", c)
		}
		expectationsMet(t, mock)
	})

	t.Run("Duplicate name is a conflict", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM create_customer(`)).
			WillReturnError(&pq.Error{Code: "23505", Detail: "Key (name)=(acme) already exists."})

		_, err := repo.Create(context.Background(), domain.CustomerInput{Name: "acme"})
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("Driver failure is a store error", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM create_customer(`)).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.Create(context.Background(), domain.CustomerInput{Name: "acme"})
		if domain.KindOf(err) != domain.KindStore {
			t.Errorf("expected store kind, got %v", err)
		}
	})
}

func TestCustomerRepository_Reads(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("GetByID applies the scope", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		scope := sqlfilter.Membership("customer.id", []int64{4})
		mock.ExpectQuery(regexp.QuoteMeta(
			`SELECT `+customerColumns+` FROM customer WHERE (customer.id = $1 AND customer.id = ANY($2))`)).
			WithArgs(int64(4), pq.Int64Array{4}).
			WillReturnRows(sqlmock.NewRows(customerCols).AddRow(int64(4), "initech", "c", nil, created))

		c, err := repo.GetByID(context.Background(), 4, scope)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.Name != "initech" || c.Comment == nil || *c.Comment != "c" {
			t.Errorf("unexpected customer %+v", c)
		}
		expectationsMet(t, mock)
	})

	t.Run("GetByName not found", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM customer WHERE customer.name = $1`)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(customerCols))

		_, err := repo.GetByName(context.Background(), "ghost", sqlfilter.Clause{})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("GetByProjectID joins through project", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		scope := sqlfilter.AnyOf(
			sqlfilter.MemberSet{Column: "c.id", IDs: nil},
			sqlfilter.MemberSet{Column: "p.id", IDs: []int64{12}},
		)
		mock.ExpectQuery(regexp.QuoteMeta(
			`SELECT `+joinedColumns+` FROM project p JOIN customer c ON p.customer = c.id WHERE (p.id = $1 AND (FALSE OR p.id = ANY($2)))`)).
			WithArgs(int64(12), pq.Int64Array{12}).
			WillReturnRows(sqlmock.NewRows(customerCols).AddRow(int64(2), "umbrella", nil, nil, created))

		c, err := repo.GetByProjectID(context.Background(), 12, scope)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.ID != 2 {
			t.Errorf("expected customer 2, got %d", c.ID)
		}
		expectationsMet(t, mock)
	})

	t.Run("List only binds the permitted ids", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		scope := sqlfilter.Or(
			sqlfilter.Membership("customer.id", []int64{5}),
			sqlfilter.InSubquery("customer.id", "SELECT project.customer FROM project",
				sqlfilter.Membership("project.id", nil)),
		)
		mock.ExpectQuery(regexp.QuoteMeta(
			`FROM customer WHERE (customer.id = ANY($1) OR customer.id IN (SELECT project.customer FROM project WHERE FALSE)) ORDER BY customer.id`)).
			WithArgs(pq.Int64Array{5}).
			WillReturnRows(sqlmock.NewRows(customerCols).AddRow(int64(5), "five", nil, nil, created))

		customers, err := repo.List(context.Background(), domain.CustomerFilter{}, scope)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(customers) != 1 || customers[0].ID != 5 {
			t.Errorf("expected only customer 5, got %+v", customers)
		}
		expectationsMet(t, mock)
	})

	t.Run("List with createdAfter and no scope", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		since := created.Add(-time.Hour)
		mock.ExpectQuery(regexp.QuoteMeta(
			`FROM customer WHERE customer.created >= $1 ORDER BY customer.id`)).
			WithArgs(since).
			WillReturnRows(sqlmock.NewRows(customerCols))

		customers, err := repo.List(context.Background(), domain.CustomerFilter{CreatedAfter: &since}, sqlfilter.Clause{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if customers == nil || len(customers) != 0 {
			t.Errorf("expected an empty, non-nil listing, got %#v", customers)
		}
		expectationsMet(t, mock)
	})
}

func TestCustomerRepository_Update(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	comment := "renewed"

	t.Run("Updates and re-reads in one transaction", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE customer SET comment = $1 WHERE id = $2`)).
			WithArgs(comment, int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM customer WHERE customer.id = $1`)).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(customerCols).AddRow(int64(9), "nine", comment, nil, created))
		mock.ExpectCommit()

		c, err := repo.Update(context.Background(), 9, domain.CustomerPatch{Comment: &comment})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.Comment == nil || *c.Comment != comment {
			t.Errorf("unexpected customer %+v", c)
		}
		expectationsMet(t, mock)
	})

	t.Run("Unknown id rolls back", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		name := "renamed"
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE customer SET name = $1, comment = $2 WHERE id = $3`)).
			WithArgs(name, comment, int64(404)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.Update(context.Background(), 404, domain.CustomerPatch{Name: &name, Comment: &comment})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("Empty patch never reaches the store", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		_, err := repo.Update(context.Background(), 1, domain.CustomerPatch{})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
		expectationsMet(t, mock)
	})
}

func TestCustomerRepository_Deletes(t *testing.T) {
	t.Run("Delete existing", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT delete_customer($1)`)).
			WithArgs("acme").
			WillReturnRows(sqlmock.NewRows([]string{"delete_customer"}).AddRow(1))

		if err := repo.DeleteByName(context.Background(), "acme"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("Delete missing is not found", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT delete_customer($1)`)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"delete_customer"}).AddRow(0))

		err := repo.DeleteByName(context.Background(), "ghost")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("Delete all truncates", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE customer CASCADE`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := repo.DeleteAll(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		expectationsMet(t, mock)
	})
}

func TestCustomerRepository_Names(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM customer ORDER BY name`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("acme").AddRow("globex"))

	names, err := repo.Names(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(names) != 2 || names[0] != "acme" || names[1] != "globex" {
		t.Errorf("unexpected names %v", names)
	}
	expectationsMet(t, mock)
}

func TestCustomerRepository_EnsureSchema(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS customer`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	expectationsMet(t, mock)
}
