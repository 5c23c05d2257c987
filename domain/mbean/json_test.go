package mbean

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueJSON(t *testing.T) {
	v := Composite(
		F("duration", Number(12)),
		F("valid", Bool(true)),
		F("memoryUsageAfterGc", Tabular([]string{"key"},
			[]Field{F("key", String("PS Eden Space")), F("value", Composite(F("used", Number(0))))},
		)),
		F("opaque", Unsupported()),
	)

	b, err := json.Marshal(v)
	require.NoError(t, err)

	var got Value
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, v, got)
}

func TestValueJSONNonFinite(t *testing.T) {
	tests := []struct {
		in   float64
		wire string
	}{
		{math.NaN(), `{"kind":"number","number":"NaN"}`},
		{math.Inf(1), `{"kind":"number","number":"+Inf"}`},
		{math.Inf(-1), `{"kind":"number","number":"-Inf"}`},
		{0.5, `{"kind":"number","number":0.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			b, err := json.Marshal(Number(tt.in))
			require.NoError(t, err)
			assert.JSONEq(t, tt.wire, string(b))

			var got Value
			require.NoError(t, json.Unmarshal(b, &got))
			assert.Equal(t, KindNumber, got.Kind)
			if math.IsNaN(tt.in) {
				assert.True(t, math.IsNaN(got.Number))
			} else {
				assert.Equal(t, tt.in, got.Number)
			}
		})
	}

	t.Run("nested", func(t *testing.T) {
		b, err := json.Marshal(Composite(F("ratio", Number(math.Inf(1)))))
		require.NoError(t, err)
		var got Value
		require.NoError(t, json.Unmarshal(b, &got))
		require.Len(t, got.Fields, 1)
		assert.True(t, math.IsInf(got.Fields[0].Value.Number, 1))
	})
}

func TestValueJSONRejects(t *testing.T) {
	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"number"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"number","number":"many"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"complex"}`), &v))
}

func TestDescriptorJSON(t *testing.T) {
	d := AttributeDescriptor{Name: "LastGcInfo", Shape: ShapeComposite}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"LastGcInfo","shape":"composite"}`, string(b))

	var back AttributeDescriptor
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back)

	name := MustParseObjectName("d:type=T")
	b, err = json.Marshal(name)
	require.NoError(t, err)
	assert.Equal(t, `"d:type=T"`, string(b))
}
