package conf

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes as a Go duration string
// such as "10s" or "1h30m". Plain time.Duration fields serialize as raw
// nanoseconds, which is unreadable in config.yaml and easy to get wrong
// when set through a GARDEND_* variable.
//
// Every source (YAML, JSON, viper env and flag values) goes through
// parseDuration, so a value that loads from one source loads the same way
// from the others.
type Duration time.Duration

// Std converts to a standard time.Duration for use with http.Server,
// context deadlines and the like.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// parseDuration accepts a Go duration string ("30s", "5m") or a bare integer
// taken as nanoseconds. Surrounding whitespace is ignored, which matters for
// values copied out of .env files. Negative values are rejected: no gardend
// setting has a meaningful negative interval.
func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		nanos, intErr := strconv.ParseInt(s, 10, 64)
		if intErr != nil {
			return 0, fmt.Errorf("invalid duration %q: expected format like \"10s\" or \"5m\"", s)
		}
		parsed = time.Duration(nanos)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	return Duration(parsed), nil
}

// fromNumber handles numeric values from JSON and viper, which arrive as
// nanoseconds.
func fromNumber(n float64) (Duration, error) {
	if n < 0 {
		return 0, fmt.Errorf("invalid duration %v: must not be negative", n)
	}
	return Duration(time.Duration(int64(n))), nil
}

// MarshalJSON writes the duration as a string so API consumers see "10s".
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string, a number of nanoseconds, or null,
// which resets to zero like the standard decoder does.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	var (
		parsed Duration
		err    error
	)
	switch value := v.(type) {
	case string:
		parsed, err = parseDuration(value)
	case float64:
		parsed, err = fromNumber(value)
	case nil:
	default:
		err = fmt.Errorf("invalid duration value: %v (type %T)", v, v)
	}
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts the same forms as parseDuration. Only scalars are
// valid; a mapping or sequence under a duration key is a config mistake.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar duration value, got %v", value.Kind)
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var durationType = reflect.TypeFor[Duration]()

// DurationDecodeHook teaches viper's mapstructure decoding about Duration.
// Values from config.yaml arrive as strings or integers depending on quoting;
// values from GARDEND_* variables always arrive as strings. Viper's own
// StringToTimeDurationHookFunc only targets time.Duration, so it is kept in
// the chain for any plain time.Duration field along with the comma slice
// hook viper installs by default.
func DurationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(func(_, to reflect.Type, data any) (any, error) {
			if to != durationType {
				return data, nil
			}
			switch v := data.(type) {
			case string:
				return parseDuration(v)
			case int:
				return fromNumber(float64(v))
			case int64:
				return fromNumber(float64(v))
			case float64:
				return fromNumber(v)
			default:
				return data, nil
			}
		}),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
