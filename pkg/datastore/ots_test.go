package datastore

import (
	"os"
	"testing"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestOts(t *testing.T) {
	if os.Getenv(config.ACCESS_KEY_ID) == "" || os.Getenv("AUTOML_OTSENDPOINT") == "" {
		t.Skip("tablestore credentials not set")
	}
	config.ConfigGlobal.OtsEndpoint = os.Getenv("AUTOML_OTSENDPOINT")
	if instance := os.Getenv("AUTOML_OTSINSTANCENAME"); instance != "" {
		config.ConfigGlobal.OtsInstanceName = instance
	}
	// create table
	tableName := "automl_test1"
	cfg := &Config{
		Type:      TableStore,
		TableName: tableName,
		ColumnConfig: map[string]string{
			"id":    "TEXT",
			"user":  "TEXT",
			"info":  "TEXT",
			"count": "INT",
		},
		PrimaryKeyColumnName: "id",
		TimeToAlive:          -1,
		MaxVersion:           1,
	}
	otsStore, err := NewOtsDatastore(cfg)
	assert.Nil(t, err)
	assert.NotNil(t, otsStore)

	// put
	err = otsStore.Put("lll", map[string]interface{}{
		"info":  "test",
		"count": 1,
	})
	assert.Nil(t, err)
	data, err := otsStore.Get("lll", []string{"info"})
	assert.Nil(t, err)
	assert.Equal(t, data["info"].(string), "test")

	// update
	err = otsStore.Update("lll", map[string]interface{}{
		"info": "test1",
		"user": "admin",
	})
	assert.Nil(t, err)
	data, err = otsStore.Get("lll", []string{"info", "user"})
	assert.Nil(t, err)
	assert.Equal(t, data["info"].(string), "test1")
	assert.Equal(t, data["user"].(string), "admin")

	// conditional update
	ok, err := otsStore.CompareAndUpdate("lll", map[string]interface{}{"count": 1},
		map[string]interface{}{"count": 2})
	assert.Nil(t, err)
	assert.True(t, ok)
	ok, err = otsStore.CompareAndUpdate("lll", map[string]interface{}{"count": 1},
		map[string]interface{}{"count": 3})
	assert.Nil(t, err)
	assert.False(t, ok)

	// ListAll
	datas, err := otsStore.ListAll([]string{"info", "user"})
	assert.Nil(t, err)
	assert.Equal(t, len(datas), 1)

	assert.Nil(t, otsStore.Delete("lll"))
}

func TestOtsCompareAndUpdateRejectsNil(t *testing.T) {
	store := &OtsStore{config: &Config{Type: TableStore, TableName: "automl_test1", PrimaryKeyColumnName: "id"}}
	ok, err := store.CompareAndUpdate("lll", map[string]interface{}{"user": "u1", "info": nil},
		map[string]interface{}{"count": int64(1)})
	assert.ErrorIs(t, err, ErrNilCondition)
	assert.False(t, ok)
}
