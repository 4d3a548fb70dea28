package stateful

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"both tokens", `{"id":"{{resource_id}}","state":"{{state}}"}`, `{"id":"42","state":"shipped"}`},
		{"whitespace in braces", "{{ resource_id }}/{{\tstate\t}}", "42/shipped"},
		{"repeated", "{{state}}{{state}}", "shippedshipped"},
		{"other tokens untouched", "{{request.body}} {{uuid}}", "{{request.body}} {{uuid}}"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Render(StateResponse{BodyTemplate: tt.template}, "42", "shipped")
			assert.Equal(t, tt.want, out.Body)
		})
	}
}

func TestRender_NoRecursiveSubstitution(t *testing.T) {
	out := Render(StateResponse{BodyTemplate: "{{resource_id}}"}, "{{state}}", "shipped")
	assert.Equal(t, "{{state}}", out.Body)
}

func TestRender_Defaults(t *testing.T) {
	out := Render(StateResponse{}, "1", InitialState)
	assert.Equal(t, 200, out.StatusCode)
	assert.Equal(t, DefaultContentType, out.ContentType)
	assert.NotNil(t, out.Headers)
	assert.Equal(t, InitialState, out.State)
	assert.Equal(t, "1", out.ResourceID)
}

func TestRender_CopiesHeaders(t *testing.T) {
	resp := StateResponse{StatusCode: 404, ContentType: "text/plain", Headers: map[string]string{"X-A": "1"}}
	out := Render(resp, "1", "gone")
	out.Headers["X-A"] = "changed"

	assert.Equal(t, "1", resp.Headers["X-A"])
	assert.Equal(t, 404, out.StatusCode)
	assert.Equal(t, "text/plain", out.ContentType)
}
