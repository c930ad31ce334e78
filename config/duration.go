package config

import (
	"encoding/json"
	"time"

	"github.com/c360/spectrad/errors"
)

// Duration is a time.Duration that unmarshals from either a duration string
// ("30s", "1m30s") or integer nanoseconds, so config files can use the
// readable form.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.WrapInvalid(err, "Duration", "UnmarshalJSON", "parse string")
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return errors.WrapInvalid(err, "Duration", "UnmarshalJSON", s)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.WrapInvalid(err, "Duration", "UnmarshalJSON", "parse number")
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
