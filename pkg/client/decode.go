package client

import (
	"encoding/json"
	"net/http"
	"reflect"

	"github.com/jzx17/httpipe/pkg/types"
)

// decode converts a 2xx payload to T. []byte and string receive the raw
// payload; every other type is decoded as JSON. An empty payload decodes to
// the zero value.
func decode[T any](status int, data []byte) (T, error) {
	var out T

	switch p := any(&out).(type) {
	case *[]byte:
		*p = data
		return out, nil
	case *string:
		*p = string(data)
		return out, nil
	}

	if status == http.StatusNoContent || len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &types.DecodeError{Target: reflect.TypeFor[T](), Cause: err}
	}
	return out, nil
}
