package datastore

import (
	"encoding/json"
	"strconv"
	"time"
)

// timeLayout fixed width so stored timestamps sort as strings
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func rowString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func rowInt(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(x), 10, 64)
		return n
	}
	return 0
}

func toJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// rawJSON keeps an empty column as a nil RawMessage
func rawJSON(v interface{}) json.RawMessage {
	s := rowString(v)
	if s == "" || s == "null" {
		return nil
	}
	return json.RawMessage(s)
}

func fromJSON(v interface{}, out interface{}) error {
	s := rowString(v)
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), out)
}
