package config

import (
	"strings"
)

// DriverName returns the database/sql driver name to open. The sqlite
// driver registers as "sqlite" (modernc.org/sqlite).
func (d *DatabaseConfig) DriverName() string {
	return d.Driver
}

// DSN returns the effective data source name. MySQL DSNs are normalized
// so time columns scan as time.Time in UTC; sqlite DSNs pass through.
func (d *DatabaseConfig) DSN() string {
	dsn := d.ConnectionString
	if d.Driver != "mysql" {
		return dsn
	}

	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	if !strings.Contains(dsn, "loc=") {
		dsn += "&loc=UTC"
	}
	return dsn
}
