package nullable

import (
	"github.com/Station-Manager/errors"
	"github.com/aarondl/null/v8"
	boilertypes "github.com/aarondl/sqlboiler/v4/types"
	"github.com/goccy/go-json"
)

// JSON encodes v into a null.JSON. A nil v is null.
func JSON(v any) (null.JSON, error) {
	const op errors.Op = "nullable.JSON"
	if v == nil {
		return null.JSON{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return null.JSON{}, errors.New(op).Err(err)
	}
	return null.JSONFrom(data), nil
}

// DecodeJSON decodes j into a T. A null or empty j yields the zero T.
func DecodeJSON[T any](j null.JSON) (T, error) {
	const op errors.Op = "nullable.DecodeJSON"
	var out T
	if !j.Valid || len(j.JSON) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(j.JSON, &out); err != nil {
		return out, errors.New(op).Err(err)
	}
	return out, nil
}

// BoilerJSON encodes v into a sqlboiler types.JSON. A nil v is nil.
func BoilerJSON(v any) (boilertypes.JSON, error) {
	const op errors.Op = "nullable.BoilerJSON"
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.New(op).Err(err)
	}
	return boilertypes.JSON(data), nil
}

// DecodeBoilerJSON decodes j into a T. An empty j yields the zero T.
func DecodeBoilerJSON[T any](j boilertypes.JSON) (T, error) {
	const op errors.Op = "nullable.DecodeBoilerJSON"
	var out T
	if len(j) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(j, &out); err != nil {
		return out, errors.New(op).Err(err)
	}
	return out, nil
}
