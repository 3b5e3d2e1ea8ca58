// Package report summarizes query results reached through a chain of handles.
package report

// DB hands out sessions.
type DB interface {
	Session() Session
}

// Session runs queries.
type Session interface {
	Query(sql string) Rows
}

// Rows iterates a result set.
type Rows interface {
	Next() bool
	Value() string
}

// Collect runs sql and returns every row value.
func Collect(db DB, sql string) []string {
	rows := db.Session().Query(sql)
	values := []string{}

	for rows.Next() {
		values = append(values, rows.Value())
	}

	return values
}
