package datastore

import (
	"errors"
	"sort"
	"strings"
)

type DatastoreType string

const (
	SQLite     DatastoreType = "sqlite"
	TableStore DatastoreType = "tableStore"
	Postgres   DatastoreType = "postgres"
)

var (
	// ErrNotFound the row with the given key does not exist
	ErrNotFound = errors.New("row not found")
	// ErrConditionFailed a conditional write saw a different row state
	ErrConditionFailed = errors.New("row condition check failed")
	// ErrNilCondition the backend cannot compare a column against nil
	ErrNilCondition = errors.New("nil expected value not supported")
)

// column value types accepted in ColumnConfig; sqlite may append constraints after the type
const (
	TypeText  = "TEXT"
	TypeInt   = "INT"
	TypeFloat = "FLOAT"
)

type Config struct {
	Type                 DatastoreType // the datastore type
	DBName               string        // the database name or dsn
	TableName            string
	ColumnConfig         map[string]string // map of column name to column type
	PrimaryKeyColumnName string
	TimeToAlive          int
	MaxVersion           int
}

type Datastore interface {
	// Put inserts or replaces the row.
	// It takes a key and a map of column names to values, and returns an error if the operation failed.
	Put(key string, values map[string]interface{}) error

	// Update the partial column values of an existing row.
	// It tasks a key and a map of column names to values, and returns an error if the operation failed.
	Update(key string, values map[string]interface{}) error

	// CompareAndUpdate writes values only if every expected column currently holds the expected value.
	// It returns false, nil when the row is missing or the condition does not hold.
	CompareAndUpdate(key string, expected map[string]interface{}, values map[string]interface{}) (bool, error)

	// Get retrieves the column values from the datastore.
	// It takes a key and a slice of column names, and returns a map of column names to values,
	// along with an error if the operation failed.
	// If the key does not exist, the returned map and error are both nil.
	Get(key string, columns []string) (map[string]interface{}, error)

	// Delete removes a value from the datastore.
	// It takes a key, and returns an error if the operation failed.
	// Note: delete a non-existent key will not return an error.
	Delete(key string) error

	// ListAll read all data from the datastore.
	// It takes a list of column name, and  return a nested map, which means map[primaryKey]map[columanName]columanValue.
	// Note: since it reads all data and store them in memory, so do not call this function on a large datastore.
	ListAll(columns []string) (map[string]map[string]interface{}, error)

	// Close close the datastore.
	Close() error
}

// baseType strips constraints, "TEXT PRIMARY KEY NOT NULL" -> "TEXT"
func baseType(def string) string {
	fields := strings.Fields(def)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func (c *Config) columns() []string {
	cols := make([]string, 0, len(c.ColumnConfig))
	for name := range c.ColumnConfig {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// valueColumns all columns except the primary key
func (c *Config) valueColumns() []string {
	cols := make([]string, 0, len(c.ColumnConfig))
	for _, name := range c.columns() {
		if name != c.PrimaryKeyColumnName {
			cols = append(cols, name)
		}
	}
	return cols
}
