package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_KeepsInsertionOrder(t *testing.T) {
	p := NewPayload(3)
	p.Set("name", StringValue("Ada"))
	p.Set("age", StringValue("30"))
	p.Set("city", StringValue("London"))

	assert.Equal(t, []string{"name", "age", "city"}, p.Keys())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ada","age":"30","city":"London"}`, string(out))
}

func TestPayload_SetExistingKeyKeepsPosition(t *testing.T) {
	p := NewPayload(0)
	p.Set("a", StringValue("1"))
	p.Set("b", StringValue("2"))
	p.Set("a", StringValue("3"))

	assert.Equal(t, []string{"a", "b"}, p.Keys())
	v, ok := p.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", v.String())
}

func TestPayload_UnmarshalPreservesOrderAndKinds(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"z":"last","n":1.5,"ok":true}`), &p))

	assert.Equal(t, []string{"z", "n", "ok"}, p.Keys())
	n, _ := p.Get("n")
	assert.Equal(t, KindNumber, n.Kind)
	assert.Equal(t, "1.5", n.String())
	ok, _ := p.Get("ok")
	assert.Equal(t, KindBool, ok.Kind)
}

func TestPayload_UnmarshalRejectsNested(t *testing.T) {
	var p Payload
	err := json.Unmarshal([]byte(`{"a":{"b":1}}`), &p)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`[1,2]`), &p)
	require.Error(t, err)
}

func TestPayload_ZeroValueMarshals(t *testing.T) {
	var p Payload
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}
