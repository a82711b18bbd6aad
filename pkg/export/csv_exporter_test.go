package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.Render(Dataset{
		Headers: []string{"name", "email", "status"},
		Rows: []map[string]string{
			{"name": "Ada", "email": "ada@example.com", "status": "Success"},
			{"name": "Grace", "email": "grace@example.com"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "name,email,status\nAda,ada@example.com,Success\nGrace,grace@example.com,\n", string(out))
}

func TestRenderRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{})
	assert.Error(t, err)
}
