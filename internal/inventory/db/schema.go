package db

import (
	"context"
	"fmt"
	"strings"

	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

type foreignKey struct {
	columns  []string
	table    string
	refs     []string
	onDelete string
}

// clause renders the key with dialect quoting so the same definitions work
// on SQLite and MySQL.
func (fk foreignKey) clause() (string, []interface{}) {
	args := make([]interface{}, 0, len(fk.columns)+len(fk.refs)+1)
	cols := make([]string, len(fk.columns))
	for i, c := range fk.columns {
		cols[i] = "?"
		args = append(args, bun.Ident(c))
	}
	args = append(args, bun.Ident(fk.table))
	refs := make([]string, len(fk.refs))
	for i, c := range fk.refs {
		refs[i] = "?"
		args = append(args, bun.Ident(c))
	}
	query := fmt.Sprintf("(%s) REFERENCES ? (%s)", strings.Join(cols, ", "), strings.Join(refs, ", "))
	if fk.onDelete != "" {
		query += " ON DELETE " + fk.onDelete
	}
	return query, args
}

type tableDef struct {
	model       interface{}
	foreignKeys []foreignKey
}

var tables = []tableDef{
	{model: (*models.User)(nil)},
	{model: (*models.Session)(nil), foreignKeys: []foreignKey{
		{[]string{"user_id"}, "users", []string{"id"}, "CASCADE"},
	}},
	{model: (*models.Event)(nil)},
	{model: (*models.SeatType)(nil), foreignKeys: []foreignKey{
		{[]string{"event_id"}, "events", []string{"id"}, "CASCADE"},
	}},
	{model: (*models.Seat)(nil), foreignKeys: []foreignKey{
		{[]string{"event_id", "type_code"}, "seat_types", []string{"event_id", "type_code"}, ""},
	}},
	{model: (*models.Order)(nil), foreignKeys: []foreignKey{
		{[]string{"event_id"}, "events", []string{"id"}, ""},
		{[]string{"user_id"}, "users", []string{"id"}, ""},
	}},
	{model: (*models.OrderLine)(nil), foreignKeys: []foreignKey{
		{[]string{"order_id"}, "orders", []string{"id"}, "CASCADE"},
		{[]string{"seat_id"}, "seats", []string{"id"}, ""},
	}},
}

var indexes = []struct {
	model  interface{}
	name   string
	column string
}{
	{(*models.Seat)(nil), "seats_event_id_idx", "event_id"},
	{(*models.Order)(nil), "orders_user_id_idx", "user_id"},
	{(*models.Order)(nil), "orders_event_id_idx", "event_id"},
	{(*models.OrderLine)(nil), "order_lines_seat_id_idx", "seat_id"},
}

// CreateSchema creates every table the store needs. It is used for SQLite and
// MySQL databases; PostgreSQL deployments run the SQL migrations instead.
func CreateSchema(ctx context.Context, bunDB *bun.DB) error {
	for _, t := range tables {
		q := bunDB.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			query, args := fk.clause()
			q = q.ForeignKey(query, args...)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", t.model, err)
		}
	}

	for _, idx := range indexes {
		_, err := bunDB.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
