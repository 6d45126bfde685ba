package datastore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgTimeout = 10 * time.Second

var strToPgType = map[string]string{
	TypeText:  "TEXT",
	TypeInt:   "BIGINT",
	TypeFloat: "DOUBLE PRECISION",
}

type PostgresStore struct {
	pool   *pgxpool.Pool
	config *Config
}

func NewPostgresDatastore(config *Config) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()
	pool, err := pgxpool.New(ctx, config.DBName)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	columnDefs := make([]string, 0, len(config.ColumnConfig))
	for _, name := range config.columns() {
		def := strToPgType[baseType(config.ColumnConfig[name])]
		if name == config.PrimaryKeyColumnName {
			def += " PRIMARY KEY"
		}
		columnDefs = append(columnDefs, fmt.Sprintf("%s %s", name, def))
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		config.TableName, strings.Join(columnDefs, ", "))); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create table %s: %w", config.TableName, err)
	}
	return &PostgresStore{pool: pool, config: config}, nil
}

func (p *PostgresStore) sortedColumns(values map[string]interface{}) ([]string, error) {
	cols := make([]string, 0, len(values))
	for c := range values {
		if _, ok := p.config.ColumnConfig[c]; !ok {
			return nil, fmt.Errorf("unknown column: %s", c)
		}
		if c == p.config.PrimaryKeyColumnName {
			continue
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

// pgValue widens integers so column values round trip as int64
func pgValue(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	}
	return v
}

func (p *PostgresStore) Get(key string, columns []string) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()
	values := make([]interface{}, len(columns))
	targets := make([]interface{}, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}
	err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(columns, ", "), p.config.TableName, p.config.PrimaryKeyColumnName), key).Scan(targets...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ret := make(map[string]interface{}, len(columns))
	for i, column := range columns {
		ret[column] = values[i]
	}
	return ret, nil
}

func (p *PostgresStore) Put(key string, values map[string]interface{}) error {
	cols, err := p.sortedColumns(values)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()
	// replace semantics: columns not given are reset to NULL
	all := p.config.valueColumns()
	names := []string{p.config.PrimaryKeyColumnName}
	placeholders := []string{"$1"}
	args := []interface{}{key}
	for _, c := range cols {
		names = append(names, c)
		args = append(args, pgValue(values[c]))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	sets := make([]string, 0, len(all))
	for _, c := range all {
		if _, ok := values[c]; ok {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		} else {
			sets = append(sets, c+" = NULL")
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		p.config.TableName, strings.Join(names, ", "), strings.Join(placeholders, ", "),
		p.config.PrimaryKeyColumnName, strings.Join(sets, ", "))
	if len(sets) == 0 {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1) ON CONFLICT DO NOTHING",
			p.config.TableName, p.config.PrimaryKeyColumnName)
	}
	_, err = p.pool.Exec(ctx, query, args...)
	return err
}

func (p *PostgresStore) Update(key string, values map[string]interface{}) error {
	ok, err := p.CompareAndUpdate(key, nil, values)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) CompareAndUpdate(key string, expected map[string]interface{},
	values map[string]interface{}) (bool, error) {
	cols, err := p.sortedColumns(values)
	if err != nil {
		return false, err
	}
	if len(cols) == 0 {
		return false, fmt.Errorf("no column to update")
	}
	conds, err := p.sortedColumns(expected)
	if err != nil {
		return false, err
	}
	args := make([]interface{}, 0, len(cols)+len(conds)+1)
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		args = append(args, pgValue(values[c]))
		sets = append(sets, fmt.Sprintf("%s = $%d", c, len(args)))
	}
	args = append(args, key)
	where := []string{fmt.Sprintf("%s = $%d", p.config.PrimaryKeyColumnName, len(args))}
	for _, c := range conds {
		if expected[c] == nil {
			where = append(where, c+" IS NULL")
			continue
		}
		args = append(args, pgValue(expected[c]))
		where = append(where, fmt.Sprintf("%s = $%d", c, len(args)))
	}
	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()
	tag, err := p.pool.Exec(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		p.config.TableName, strings.Join(sets, ", "), strings.Join(where, " AND ")), args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()
	_, err := p.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		p.config.TableName, p.config.PrimaryKeyColumnName), key)
	return err
}

func (p *PostgresStore) ListAll(columns []string) (map[string]map[string]interface{}, error) {
	if len(columns) == 0 {
		columns = p.config.valueColumns()
	}
	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()
	selected := append([]string{p.config.PrimaryKeyColumnName}, columns...)
	rows, err := p.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(selected, ", "), p.config.TableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make(map[string]map[string]interface{})
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		m := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			m[column] = values[i+1]
		}
		key, _ := values[0].(string)
		results[key] = m
	}
	return results, rows.Err()
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
