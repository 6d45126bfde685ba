package datastore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aliyun/aliyun-tablestore-go-sdk/tablestore"
	conf "github.com/devsapp/serverless-automl-hub/pkg/config"
)

var (
	otsClient    *tablestore.TableStoreClient
	once         sync.Once
	strToOtsType = map[string]tablestore.DefinedColumnType{
		TypeText:  tablestore.DefinedColumn_STRING,
		TypeInt:   tablestore.DefinedColumn_INTEGER,
		TypeFloat: tablestore.DefinedColumn_DOUBLE,
	}
)

// example: "TEXT" to tablestore.DefinedColumn_STRING
func getOtsType(s string) tablestore.DefinedColumnType {
	return strToOtsType[baseType(s)]
}

// InitOtsClient init ots client
func InitOtsClient() {
	otsClient = tablestore.NewClientWithConfig(conf.ConfigGlobal.OtsEndpoint, conf.ConfigGlobal.OtsInstanceName,
		conf.ConfigGlobal.AccessKeyId, conf.ConfigGlobal.AccessKeySecret, conf.ConfigGlobal.AccessKeyToken, nil)
}

type OtsStore struct {
	config *Config
}

func NewOtsDatastore(config *Config) (*OtsStore, error) {
	// init otsClient, only first call valid
	once.Do(InitOtsClient)

	// check table is exist; if not create
	describeTableRequest := &tablestore.DescribeTableRequest{
		TableName: config.TableName,
	}
	if tableInfo, err := otsClient.DescribeTable(describeTableRequest); err == nil && tableInfo.TableMeta != nil {
		return &OtsStore{config: config}, nil
	}
	createTableRequest := new(tablestore.CreateTableRequest)
	tableMeta := new(tablestore.TableMeta)
	tableMeta.TableName = config.TableName
	tableMeta.AddPrimaryKeyColumn(config.PrimaryKeyColumnName, tablestore.PrimaryKeyType_STRING)
	for _, field := range config.columns() {
		if field == config.PrimaryKeyColumnName {
			continue
		}
		tableMeta.AddDefinedColumn(field, getOtsType(config.ColumnConfig[field]))
	}
	tableOption := new(tablestore.TableOption)
	tableOption.TimeToAlive = config.TimeToAlive
	tableOption.MaxVersion = config.MaxVersion
	reservedThroughput := new(tablestore.ReservedThroughput)
	reservedThroughput.Readcap = 0
	reservedThroughput.Writecap = 0
	createTableRequest.TableMeta = tableMeta
	createTableRequest.TableOption = tableOption
	createTableRequest.ReservedThroughput = reservedThroughput

	if _, err := otsClient.CreateTable(createTableRequest); err != nil {
		return nil, fmt.Errorf("create ots table %s: %w", config.TableName, err)
	}
	return &OtsStore{config: config}, nil
}

func (o *OtsStore) primaryKey(key string) *tablestore.PrimaryKey {
	pk := new(tablestore.PrimaryKey)
	pk.AddPrimaryKeyColumn(o.config.PrimaryKeyColumnName, key)
	return pk
}

// otsValue ots only encodes string, int64, float64, bool and []byte
func otsValue(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

func (o *OtsStore) Get(key string, columns []string) (map[string]interface{}, error) {
	getRowRequest := new(tablestore.GetRowRequest)
	getRowRequest.SingleRowQueryCriteria = &tablestore.SingleRowQueryCriteria{
		PrimaryKey:   o.primaryKey(key),
		ColumnsToGet: columns,
		TableName:    o.config.TableName,
		MaxVersion:   1,
	}
	resp, err := otsClient.GetRow(getRowRequest)
	if err != nil {
		return nil, err
	}
	if len(resp.PrimaryKey.PrimaryKeys) == 0 {
		return nil, nil
	}
	columnMap := resp.GetColumnMap()
	ret := make(map[string]interface{}, len(columns))
	for _, column := range columns {
		ret[column] = nil
	}
	for key, items := range columnMap.Columns {
		ret[key] = items[0].Value
	}
	if _, ok := ret[o.config.PrimaryKeyColumnName]; ok {
		ret[o.config.PrimaryKeyColumnName] = key
	}
	return ret, nil
}

func (o *OtsStore) Put(key string, datas map[string]interface{}) error {
	putRowRequest := new(tablestore.PutRowRequest)
	putRowChange := new(tablestore.PutRowChange)
	putRowChange.TableName = o.config.TableName
	putRowChange.PrimaryKey = o.primaryKey(key)
	for col, data := range datas {
		if col == o.config.PrimaryKeyColumnName || data == nil {
			continue
		}
		putRowChange.AddColumn(col, otsValue(data))
	}
	putRowChange.SetCondition(tablestore.RowExistenceExpectation_IGNORE)
	putRowRequest.PutRowChange = putRowChange
	if _, err := otsClient.PutRow(putRowRequest); err != nil {
		return err
	}
	return nil
}

func (o *OtsStore) updateChange(key string, datas map[string]interface{}) *tablestore.UpdateRowChange {
	updateRowChange := new(tablestore.UpdateRowChange)
	updateRowChange.TableName = o.config.TableName
	updateRowChange.PrimaryKey = o.primaryKey(key)
	for col, data := range datas {
		if data == nil {
			updateRowChange.DeleteColumn(col)
			continue
		}
		updateRowChange.PutColumn(col, otsValue(data))
	}
	updateRowChange.SetCondition(tablestore.RowExistenceExpectation_EXPECT_EXIST)
	return updateRowChange
}

func (o *OtsStore) Update(key string, datas map[string]interface{}) error {
	updateRowRequest := new(tablestore.UpdateRowRequest)
	updateRowRequest.UpdateRowChange = o.updateChange(key, datas)
	if _, err := otsClient.UpdateRow(updateRowRequest); err != nil {
		if isConditionFail(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// CompareAndUpdate maps expected values onto an AND of single column conditions.
// A nil expected value has no column condition and is rejected with ErrNilCondition.
func (o *OtsStore) CompareAndUpdate(key string, expected map[string]interface{},
	datas map[string]interface{}) (bool, error) {
	for col, value := range expected {
		if value == nil {
			return false, fmt.Errorf("%w: %s", ErrNilCondition, col)
		}
	}
	updateRowChange := o.updateChange(key, datas)
	composite := tablestore.NewCompositeColumnCondition(tablestore.LO_AND)
	filters := 0
	var single *tablestore.SingleColumnCondition
	for col, value := range expected {
		single = tablestore.NewSingleColumnCondition(col, tablestore.CT_EQUAL, otsValue(value))
		single.FilterIfMissing = true
		composite.AddFilter(single)
		filters++
	}
	switch {
	case filters == 1:
		updateRowChange.SetColumnCondition(single)
	case filters > 1:
		updateRowChange.SetColumnCondition(composite)
	}
	updateRowRequest := new(tablestore.UpdateRowRequest)
	updateRowRequest.UpdateRowChange = updateRowChange
	if _, err := otsClient.UpdateRow(updateRowRequest); err != nil {
		if isConditionFail(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isConditionFail(err error) bool {
	return strings.Contains(err.Error(), "OTSConditionCheckFail")
}

func (o *OtsStore) Delete(key string) error {
	deleteRowReq := new(tablestore.DeleteRowRequest)
	deleteRowReq.DeleteRowChange = new(tablestore.DeleteRowChange)
	deleteRowReq.DeleteRowChange.TableName = o.config.TableName
	deleteRowReq.DeleteRowChange.PrimaryKey = o.primaryKey(key)
	deleteRowReq.DeleteRowChange.SetCondition(tablestore.RowExistenceExpectation_IGNORE)
	if _, err := otsClient.DeleteRow(deleteRowReq); err != nil {
		return err
	}
	return nil
}

func (o *OtsStore) ListAll(columns []string) (map[string]map[string]interface{}, error) {
	startPK := new(tablestore.PrimaryKey)
	startPK.AddPrimaryKeyColumnWithMinValue(o.config.PrimaryKeyColumnName)
	endPK := new(tablestore.PrimaryKey)
	endPK.AddPrimaryKeyColumnWithMaxValue(o.config.PrimaryKeyColumnName)

	rangeRowQueryCriteria := &tablestore.RangeRowQueryCriteria{
		TableName:       o.config.TableName,
		StartPrimaryKey: startPK,
		EndPrimaryKey:   endPK,
		Direction:       tablestore.FORWARD,
		MaxVersion:      1,
		Limit:           1000,
		ColumnsToGet:    columns,
	}
	resp := make(map[string]map[string]interface{})
	for {
		getRangeResp, err := otsClient.GetRange(&tablestore.GetRangeRequest{
			RangeRowQueryCriteria: rangeRowQueryCriteria,
		})
		if err != nil {
			return nil, err
		}
		for _, row := range getRangeResp.Rows {
			result := make(map[string]interface{}, len(columns))
			for _, column := range columns {
				result[column] = nil
			}
			key := row.PrimaryKey.PrimaryKeys[0].Value.(string)
			for _, col := range row.Columns {
				result[col.ColumnName] = col.Value
			}
			resp[key] = result
		}
		if getRangeResp.NextStartPrimaryKey == nil {
			break
		}
		rangeRowQueryCriteria.StartPrimaryKey = getRangeResp.NextStartPrimaryKey
	}
	return resp, nil
}

func (o *OtsStore) Close() error {
	// do nothing
	return nil
}
