package datastore

import (
	"fmt"

	config2 "github.com/devsapp/serverless-automl-hub/pkg/config"
)

type DatastoreFactory struct{}

func (f *DatastoreFactory) NewTable(dbType DatastoreType, tableName string) (Datastore, error) {
	if _, ok := tableMetas[tableName]; !ok {
		return nil, fmt.Errorf("unknown table %s", tableName)
	}
	switch dbType {
	case SQLite:
		return NewSQLiteDatastore(NewSQLiteConfig(tableName))
	case TableStore:
		return NewOtsDatastore(NewOtsConfig(tableName))
	case Postgres:
		return NewPostgresDatastore(NewPostgresConfig(tableName))
	default:
		return nil, fmt.Errorf("not support db type=%s", dbType)
	}
}

func copyColumns(meta tableMeta) map[string]string {
	columns := make(map[string]string, len(meta.columns))
	for k, v := range meta.columns {
		columns[k] = v
	}
	return columns
}

func NewSQLiteConfig(tableName string) *Config {
	meta := tableMetas[tableName]
	config := &Config{
		Type:                 SQLite,
		DBName:               config2.ConfigGlobal.DbSqlite,
		TableName:            tableName,
		ColumnConfig:         copyColumns(meta),
		PrimaryKeyColumnName: meta.primaryKey,
	}
	config.ColumnConfig[meta.primaryKey] = TypeText + " PRIMARY KEY NOT NULL"
	return config
}

func NewOtsConfig(tableName string) *Config {
	meta := tableMetas[tableName]
	config := &Config{
		Type:                 TableStore,
		TableName:            tableName,
		ColumnConfig:         copyColumns(meta),
		PrimaryKeyColumnName: meta.primaryKey,
		TimeToAlive:          config2.ConfigGlobal.OtsTimeToAlive,
		MaxVersion:           config2.ConfigGlobal.OtsMaxVersion,
	}
	if config.MaxVersion <= 0 {
		config.MaxVersion = 1
	}
	return config
}

func NewPostgresConfig(tableName string) *Config {
	meta := tableMetas[tableName]
	return &Config{
		Type:                 Postgres,
		DBName:               config2.ConfigGlobal.PostgresDSN,
		TableName:            tableName,
		ColumnConfig:         copyColumns(meta),
		PrimaryKeyColumnName: meta.primaryKey,
	}
}
