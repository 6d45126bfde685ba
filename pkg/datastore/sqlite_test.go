package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(tableName string) *Config {
	primaryKeyColumnName := "primaryKey"
	return &Config{
		DBName:    ":memory:", // the memory database for testing purposes
		TableName: tableName,
		ColumnConfig: map[string]string{
			primaryKeyColumnName: "text primary key not null",
			"value":              "text",
			"intCol":             "int",
			"floatCol":           "float",
		},
		PrimaryKeyColumnName: primaryKeyColumnName,
	}
}

func TestSQLiteDatastore(t *testing.T) {
	ds, err := NewSQLiteDatastore(newTestConfig("TestSQLiteDatastore"))
	require.NoError(t, err)
	defer ds.Close()

	key := "testKey"
	value := "testValue"
	intValue := 123
	floatValue := 123.45

	// Test Put.
	err = ds.Put(key, map[string]interface{}{"value": value, "intCol": intValue, "floatCol": floatValue})
	assert.NoError(t, err)

	// Test Get.
	result, err := ds.Get(key, []string{"value", "intCol", "floatCol"})
	assert.NoError(t, err)
	assert.Equal(t, value, result["value"].(string))
	assert.Equal(t, int64(intValue), result["intCol"].(int64))
	assert.Equal(t, floatValue, result["floatCol"].(float64))

	// Test Update.
	err = ds.Update(key, map[string]interface{}{"value": "updated"})
	assert.NoError(t, err)
	result, err = ds.Get(key, []string{"value", "intCol"})
	assert.NoError(t, err)
	assert.Equal(t, "updated", result["value"])
	assert.Equal(t, int64(intValue), result["intCol"])

	// Test Update of a missing row.
	err = ds.Update("non-existent key", map[string]interface{}{"value": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	// Test Delete.
	err = ds.Delete(key)
	assert.NoError(t, err)

	// Test that the key is indeed deleted.
	result, err = ds.Get(key, []string{"value", "intCol", "floatCol"})
	assert.NoError(t, err)
	assert.Nil(t, result)

	// Test deleting a non-existent key.
	err = ds.Delete("non-existent key")
	assert.NoError(t, err)

	// Test Put with non-existent column.
	err = ds.Put(key, map[string]interface{}{"non_existent_column": value})
	assert.Error(t, err)

	// Test Put with wrong value type.
	// Note: we do not expect wrong value type will result in error, since Go database/sql will try to convert it automatically.
	err = ds.Put(key, map[string]interface{}{"value": 123, "intCol": "123", "floatCol": "123.45"})
	assert.NoError(t, err)

	// Test Get with non-existent column.
	_, err = ds.Get(key, []string{"non_existent_column"})
	assert.Error(t, err)

	// Test Get with non-existent key.
	_, err = ds.Get("non-existent key", []string{"value", "intCol", "floatCol"})
	assert.NoError(t, err)
}

func TestSQLiteNullColumns(t *testing.T) {
	ds, err := NewSQLiteDatastore(newTestConfig("TestSQLiteNullColumns"))
	require.NoError(t, err)
	defer ds.Close()

	require.NoError(t, ds.Put("k", map[string]interface{}{"value": "v"}))
	result, err := ds.Get("k", []string{"value", "intCol", "floatCol"})
	require.NoError(t, err)
	assert.Equal(t, "v", result["value"])
	assert.Nil(t, result["intCol"])
	assert.Nil(t, result["floatCol"])
}

func TestSQLiteCompareAndUpdate(t *testing.T) {
	ds, err := NewSQLiteDatastore(newTestConfig("TestSQLiteCompareAndUpdate"))
	require.NoError(t, err)
	defer ds.Close()

	require.NoError(t, ds.Put("k", map[string]interface{}{"value": "run-1", "intCol": 10}))

	ok, err := ds.CompareAndUpdate("k", map[string]interface{}{"value": "run-1", "intCol": 10},
		map[string]interface{}{"intCol": 20})
	require.NoError(t, err)
	assert.True(t, ok)

	// the stale expectation loses
	ok, err = ds.CompareAndUpdate("k", map[string]interface{}{"value": "run-1", "intCol": 10},
		map[string]interface{}{"intCol": 30})
	require.NoError(t, err)
	assert.False(t, ok)

	// nil expected matches NULL
	ok, err = ds.CompareAndUpdate("k", map[string]interface{}{"floatCol": nil},
		map[string]interface{}{"floatCol": 1.5})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ds.CompareAndUpdate("missing", nil, map[string]interface{}{"intCol": 1})
	require.NoError(t, err)
	assert.False(t, ok)

	result, err := ds.Get("k", []string{"intCol", "floatCol"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), result["intCol"])
	assert.Equal(t, 1.5, result["floatCol"])

	_, err = ds.CompareAndUpdate("k", map[string]interface{}{"bogus": 1}, map[string]interface{}{"intCol": 1})
	assert.Error(t, err)
}

func TestListAll(t *testing.T) {
	ds, err := NewSQLiteDatastore(newTestConfig("TestListAll"))
	require.NoError(t, err)
	defer ds.Close()

	// Insert some test data.
	testData := map[string]map[string]interface{}{
		"key1": {"value": "value1", "intCol": 1, "floatCol": 1.1},
		"key2": {"value": "value2", "intCol": 2, "floatCol": 2.2},
		"key3": {"value": "value3", "intCol": 3, "floatCol": 3.3},
	}
	for k, v := range testData {
		err := ds.Put(k, v)
		assert.NoError(t, err)
	}

	// Call ListAll and check the result.
	result, err := ds.ListAll(nil)
	assert.NoError(t, err)
	for k, v := range testData {
		r, ok := result[k]
		assert.True(t, ok)
		assert.Equal(t, v["value"], r["value"].(string))
		assert.Equal(t, int64(v["intCol"].(int)), r["intCol"].(int64))
		assert.Equal(t, v["floatCol"].(float64), r["floatCol"].(float64))
	}

	// only the requested columns come back
	result, err = ds.ListAll([]string{"value"})
	assert.NoError(t, err)
	assert.Len(t, result["key1"], 1)

	// Delete all data.
	for k := range testData {
		err = ds.Delete(k)
		assert.NoError(t, err)
	}

	// Call ListAll again and check the result.
	result, err = ds.ListAll(nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(result))
}

func TestFactoryUnknownTable(t *testing.T) {
	f := DatastoreFactory{}
	_, err := f.NewTable(SQLite, "nope")
	assert.Error(t, err)
	_, err = f.NewTable(DatastoreType("mongo"), KModelTableName)
	assert.Error(t, err)
}
