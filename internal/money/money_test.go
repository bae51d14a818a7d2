package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents(t *testing.T) {
	tests := []struct {
		in      string
		want    Cents
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12.345", 1235, false},
		{"12.344", 1234, false},
		{"0.1", 10, false},
		{"100", 10000, false},
		{" 7.5 ", 750, false},
		{"", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCents(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCentsString(t *testing.T) {
	assert.Equal(t, "12.30", Cents(1230).String())
	assert.Equal(t, "-0.05", Cents(-5).String())
	assert.Equal(t, "0.00", Cents(0).String())
}

func TestOutOfRange(t *testing.T) {
	c, err := ParseCents("92233720368547758.07")
	require.NoError(t, err)
	assert.Equal(t, Cents(math.MaxInt64), c)

	_, err = ParseCents("92233720368547758.08")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ParseCents("-92233720368547758.09")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// 2^64 + 17 cents would wrap to 0.01 if truncated to int64.
	c = 0
	err = json.Unmarshal([]byte(`184467440737095516.17`), &c)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, Cents(0), c)

	err = json.Unmarshal([]byte(`"184467440737095516.17"`), &c)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	var p Percent
	err = json.Unmarshal([]byte(`184467440737095516.17`), &p)
	assert.ErrorIs(t, err, ErrInvalidPercent)
	_, err = ParsePercent("1e30")
	assert.ErrorIs(t, err, ErrInvalidPercent)
}

func TestParsePercent(t *testing.T) {
	p, err := ParsePercent("33.33")
	require.NoError(t, err)
	assert.Equal(t, Percent(3333), p)
	assert.Equal(t, "33.33", p.String())
	assert.Equal(t, "100", Hundred.String())
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Amount  Cents    `json:"amount"`
		Percent *Percent `json:"percent,omitempty"`
	}

	pct := Percent(2550)
	in := payload{Amount: 10001, Percent: &pct}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 100.01, "percent": 25.50}`, string(data))

	var out payload
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Amount, out.Amount)
	require.NotNil(t, out.Percent)
	assert.Equal(t, pct, *out.Percent)
}

func TestUnmarshalAcceptsStrings(t *testing.T) {
	var c Cents
	require.NoError(t, json.Unmarshal([]byte(`"19.99"`), &c))
	assert.Equal(t, Cents(1999), c)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &c))
}
