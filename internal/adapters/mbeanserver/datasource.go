package mbeanserver

import (
	"context"
	"database/sql"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

// DataSourceDomain is the domain of database/sql connection pool beans.
const DataSourceDomain = "database.sql"

// DataSourceName returns the object name used for a registered pool.
func DataSourceName(name string) mbean.ObjectName {
	return mbean.ObjectName{Domain: DataSourceDomain, Properties: []mbean.Property{
		{Key: "type", Value: "DataSource"},
		{Key: "name", Value: name},
	}}
}

// RegisterDataSource exposes the connection pool statistics of db.
func RegisterDataSource(s *Server, name string, db *sql.DB) error {
	stat := func(attr, description string, pick func(sql.DBStats) float64) Attribute {
		return Attribute{
			Name:        attr,
			Description: description,
			Get: func(context.Context) (mbean.Value, error) {
				return mbean.Number(pick(db.Stats())), nil
			},
		}
	}

	return s.Register(DataSourceName(name),
		stat("MaxOpenConnections", "Maximum number of open connections", func(st sql.DBStats) float64 { return float64(st.MaxOpenConnections) }),
		stat("OpenConnections", "Established connections, in use and idle", func(st sql.DBStats) float64 { return float64(st.OpenConnections) }),
		stat("InUse", "Connections currently in use", func(st sql.DBStats) float64 { return float64(st.InUse) }),
		stat("Idle", "Idle connections", func(st sql.DBStats) float64 { return float64(st.Idle) }),
		stat("WaitCount", "Total connections waited for", func(st sql.DBStats) float64 { return float64(st.WaitCount) }),
		stat("WaitDuration", "Total time blocked waiting for a connection in milliseconds", func(st sql.DBStats) float64 {
			return float64(st.WaitDuration.Milliseconds())
		}),
		stat("MaxIdleClosed", "Connections closed due to SetMaxIdleConns", func(st sql.DBStats) float64 { return float64(st.MaxIdleClosed) }),
		stat("MaxIdleTimeClosed", "Connections closed due to SetConnMaxIdleTime", func(st sql.DBStats) float64 { return float64(st.MaxIdleTimeClosed) }),
		stat("MaxLifetimeClosed", "Connections closed due to SetConnMaxLifetime", func(st sql.DBStats) float64 { return float64(st.MaxLifetimeClosed) }),
		Attribute{
			Name:        "Reachable",
			Description: "Whether the database answers a ping",
			Get: func(ctx context.Context) (mbean.Value, error) {
				return mbean.Bool(db.PingContext(ctx) == nil), nil
			},
		},
	)
}
