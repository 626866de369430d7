package middleware_test

import (
	"testing"

	"github.com/aretw0/switchlink/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
)

func TestRedactor_Apply(t *testing.T) {
	r := middleware.NewRedactor([]string{"^ilpPacket$", "^requests$"}, []string{"dateOfBirth"})

	record := map[string]any{
		"transferId": "t1",
		"requests":   map[string]any{"quote": map[string]any{"body": "..."}},
		"to": map[string]any{
			"idValue":     "123",
			"dateOfBirth": "1990-01-01",
		},
		"getPartiesResponses": []any{
			map[string]any{"personalInfo": map[string]any{"dateOfBirth": "1980-02-02"}},
		},
		"prepare": map[string]any{"ilpPacket": "AYIB...", "condition": "c"},
	}

	out := r.Apply(record)

	assert.Equal(t, "t1", out["transferId"])
	assert.Nil(t, out["requests"])
	assert.Equal(t, middleware.Mask, out["to"].(map[string]any)["dateOfBirth"])
	assert.Equal(t, "123", out["to"].(map[string]any)["idValue"])
	assert.Nil(t, out["prepare"].(map[string]any)["ilpPacket"])
	assert.Equal(t, "c", out["prepare"].(map[string]any)["condition"])

	nested := out["getPartiesResponses"].([]any)[0].(map[string]any)["personalInfo"].(map[string]any)
	assert.Equal(t, middleware.Mask, nested["dateOfBirth"])

	// Original untouched.
	assert.Equal(t, "1990-01-01", record["to"].(map[string]any)["dateOfBirth"])
	assert.NotNil(t, record["requests"])
}

func TestRedactor_NilCopies(t *testing.T) {
	var r *middleware.Redactor
	in := map[string]any{"a": map[string]any{"b": 1}}
	out := r.Apply(in)
	out["a"].(map[string]any)["b"] = 2
	assert.Equal(t, 1, in["a"].(map[string]any)["b"])
}
