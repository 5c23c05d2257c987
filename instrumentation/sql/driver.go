package sql

import (
	"database/sql"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
)

// Open opens a traced database handle. The driver name is recorded as the
// db.system attribute of every span.
func Open(driverName, dataSourceName string) (*sql.DB, error) {
	db, err := otelsql.Open(driverName, dataSourceName,
		otelsql.WithAttributes(attribute.String("db.system", driverName)),
		otelsql.WithSpanOptions(otelsql.SpanOptions{OmitConnResetSession: true}),
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
