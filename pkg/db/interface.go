package db

import "database/sql"

// DBProvider is an interface for database clients that expose a sql.DB
// handle. It lets the SQL manifest store run on either PostgresClient or
// SupabaseClient interchangeably.
type DBProvider interface {
	DB() *sql.DB
}
