package sensors

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestCoerceBool(t *testing.T) {
	is := is.New(t)

	cases := []struct {
		in   any
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"on", true},
		{"yes", true},
		{"0", false},
		{"nope", false},
		{float64(0), false},
		{float64(3), true},
		{true, true},
	}

	for _, c := range cases {
		is.Equal(coerceBool(c.in), c.want)
	}
}

func TestDecodeFloatFromString(t *testing.T) {
	is := is.New(t)

	v, err := Decode(ReturnFloat, "", "temp", "26")
	is.NoErr(err)
	is.Equal(v, 26.0)
}

func TestDecodeIntTruncatesTowardZero(t *testing.T) {
	is := is.New(t)

	v, err := Decode(ReturnInt, "", "count", "7.9")
	is.NoErr(err)
	is.Equal(v, int64(7))
}

func TestDecodeBadFloatIsDecodeError(t *testing.T) {
	is := is.New(t)

	_, err := Decode(ReturnFloat, "", "temp", "not-a-number")
	is.True(err != nil)

	var de *DecodeError
	is.True(errors.As(err, &de))
	is.Equal(de.SensorName, "temp")
}

func TestDecodeJSONPathExtractsField(t *testing.T) {
	is := is.New(t)

	v, err := Decode(ReturnFloat, "$.cpu.pct", "load", []byte(`{"cpu":{"pct":0.42}}`))
	is.NoErr(err)
	is.Equal(v, 0.42)
}

func TestDecodeJSONPathMissIsNoValue(t *testing.T) {
	is := is.New(t)

	v, err := Decode(ReturnFloat, "$.missing", "load", []byte(`{"cpu":{"pct":0.42}}`))
	is.NoErr(err)
	is.Equal(v, nil)
}

