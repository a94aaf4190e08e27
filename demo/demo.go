// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package demo

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/saurfang/spark"
	"github.com/saurfang/spark/expr"
	"github.com/saurfang/spark/row"
	"github.com/saurfang/spark/types"
)

func example() error {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}
	defer sqldb.Close()

	_, err = sqldb.Exec(`
		CREATE TABLE orders (
			sku text,
			qty integer,
			price real
		);
		INSERT INTO orders VALUES
			('widget', 4, 2.5),
			('gadget', 1, 19.5),
			('doodad', 0, NULL);`)
	if err != nil {
		return err
	}

	schema := types.Schema{
		{Name: "sku", Type: types.String},
		{Name: "qty", Type: types.Int64},
		{Name: "price", Type: types.Float64},
	}

	// Compile the projection once, up front. The same expression list
	// compiled again anywhere in the process reuses this factory.
	proj, err := spark.Compile(schema, []expr.Expr{
		expr.As(expr.Concat(expr.Lit("order:"), expr.Col("sku")), "label"),
		expr.As(expr.Mul(expr.Col("qty"), expr.Coalesce(expr.Col("price"), expr.Lit(0.0))), "total"),
		expr.As(expr.Or(expr.Eq(expr.Col("qty"), expr.Lit(0)), expr.IsNull(expr.Col("price"))), "flagged"),
	})
	if err != nil {
		return err
	}

	rows, err := sqldb.Query("SELECT sku, qty, price FROM orders")
	if err != nil {
		return err
	}
	defer rows.Close()

	t := proj.New()
	for rows.Next() {
		var sku sql.NullString
		var qty sql.NullInt64
		var price sql.NullFloat64
		if err := rows.Scan(&sku, &qty, &price); err != nil {
			return err
		}
		in := row.NewGeneric(3)
		if sku.Valid {
			in.SetString(0, sku.String)
		}
		if qty.Valid {
			in.SetInt64(1, qty.Int64)
		}
		if price.Valid {
			in.SetFloat64(2, price.Float64)
		}
		fmt.Println(t.Apply(in))
	}
	return rows.Err()
}

func main() {
	err := example()
	if err != nil {
		panic(err)
	}
}
