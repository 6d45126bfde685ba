package datastore

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteDatastore struct {
	db     *sql.DB
	config *Config
}

func NewSQLiteDatastore(config *Config) (*SQLiteDatastore, error) {
	dsn := config.DBName
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: an in-memory database lives per connection and writers serialise
	db.SetMaxOpenConns(1)

	// Create table if it doesn't exist.
	columnDefs := make([]string, 0, len(config.ColumnConfig))
	for _, name := range config.columns() {
		columnDefs = append(columnDefs, fmt.Sprintf("%s %s", name, config.ColumnConfig[name]))
	}
	query := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)",
		config.TableName,
		strings.Join(columnDefs, ", "),
	)
	if _, err = db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", config.TableName, err)
	}
	return &SQLiteDatastore{
		db:     db,
		config: config,
	}, nil
}

func (ds *SQLiteDatastore) Close() error {
	return ds.db.Close()
}

// scanTargets allocates nullable holders matching the configured column types.
func scanTargets(config *Config, columns []string) ([]interface{}, error) {
	values := make([]interface{}, len(columns))
	for i, column := range columns {
		def, ok := config.ColumnConfig[column]
		if !ok {
			return nil, fmt.Errorf("unknown column: %s", column)
		}
		switch baseType(def) {
		case TypeText:
			values[i] = new(sql.NullString)
		case TypeInt, "INTEGER", "BIGINT":
			values[i] = new(sql.NullInt64)
		case TypeFloat, "REAL", "DOUBLE":
			values[i] = new(sql.NullFloat64)
		default:
			return nil, fmt.Errorf("unsupported column type: %s", def)
		}
	}
	return values, nil
}

// unwrap converts scanned holders into string, int64, float64 or nil.
func unwrap(v interface{}) interface{} {
	switch x := v.(type) {
	case *sql.NullString:
		if x.Valid {
			return x.String
		}
	case *sql.NullInt64:
		if x.Valid {
			return x.Int64
		}
	case *sql.NullFloat64:
		if x.Valid {
			return x.Float64
		}
	}
	return nil
}

func (ds *SQLiteDatastore) checkColumns(values map[string]interface{}) ([]string, error) {
	cols := make([]string, 0, len(values))
	for c := range values {
		if _, ok := ds.config.ColumnConfig[c]; !ok {
			return nil, fmt.Errorf("unknown column: %s", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func (ds *SQLiteDatastore) Get(key string, columns []string) (map[string]interface{}, error) {
	values, err := scanTargets(ds.config, columns)
	if err != nil {
		return nil, err
	}
	row := ds.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			strings.Join(columns, ", "), ds.config.TableName, ds.config.PrimaryKeyColumnName),
		key,
	)
	if err := row.Scan(values...); err != nil {
		if err == sql.ErrNoRows {
			// There is no row with the given key.
			return nil, nil
		}
		return nil, err
	}
	result := make(map[string]interface{}, len(columns))
	for i, column := range columns {
		result[column] = unwrap(values[i])
	}
	return result, nil
}

func (ds *SQLiteDatastore) Put(key string, values map[string]interface{}) error {
	cols, err := ds.checkColumns(values)
	if err != nil {
		return err
	}
	columns := []string{ds.config.PrimaryKeyColumnName}
	placeholders := []string{"?"}
	args := []interface{}{key}
	for _, column := range cols {
		if column == ds.config.PrimaryKeyColumnName {
			continue
		}
		columns = append(columns, column)
		placeholders = append(placeholders, "?")
		args = append(args, values[column])
	}
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		ds.config.TableName,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	_, err = ds.db.Exec(query, args...)
	return err
}

func (ds *SQLiteDatastore) Update(key string, values map[string]interface{}) error {
	ok, err := ds.CompareAndUpdate(key, nil, values)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (ds *SQLiteDatastore) CompareAndUpdate(key string, expected map[string]interface{},
	values map[string]interface{}) (bool, error) {
	cols, err := ds.checkColumns(values)
	if err != nil {
		return false, err
	}
	if len(cols) == 0 {
		return false, fmt.Errorf("no column to update")
	}
	conds, err := ds.checkColumns(expected)
	if err != nil {
		return false, err
	}
	sets := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+len(conds)+1)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
		args = append(args, values[c])
	}
	where := []string{ds.config.PrimaryKeyColumnName + " = ?"}
	args = append(args, key)
	for _, c := range conds {
		if expected[c] == nil {
			where = append(where, c+" IS NULL")
			continue
		}
		where = append(where, c+" = ?")
		args = append(args, expected[c])
	}
	res, err := ds.db.Exec(fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		ds.config.TableName, strings.Join(sets, ", "), strings.Join(where, " AND ")), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (ds *SQLiteDatastore) Delete(key string) error {
	_, err := ds.db.Exec(
		fmt.Sprintf(
			"DELETE FROM %s WHERE %s = ?", ds.config.TableName, ds.config.PrimaryKeyColumnName),
		key)
	return err
}

func (ds *SQLiteDatastore) ListAll(columns []string) (map[string]map[string]interface{}, error) {
	if len(columns) == 0 {
		columns = ds.config.valueColumns()
	}
	selected := append([]string{ds.config.PrimaryKeyColumnName}, columns...)
	rows, err := ds.db.Query(fmt.Sprintf("SELECT %s FROM %s", strings.Join(selected, ", "), ds.config.TableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make(map[string]map[string]interface{})
	for rows.Next() {
		values, err := scanTargets(ds.config, selected)
		if err != nil {
			return nil, err
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		m := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			m[column] = unwrap(values[i+1])
		}
		key, _ := unwrap(values[0]).(string)
		results[key] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
