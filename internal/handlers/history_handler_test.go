package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sales-copilot/internal/repositories"
)

func TestNormalizeRow(t *testing.T) {
	t.Run("legacy docs_only row moves payload into meta", func(t *testing.T) {
		row := &repositories.Message{
			Role:    "assistant",
			Content: `{"type":"docs_only","recommendedDocs":[{"title":"U2400 Sales Sheet"}],"foldersUsed":["anchors/u-anchors"]}`,
		}

		normalizeRow(row)

		assert.Equal(t, "", row.Content)
		assert.Equal(t, "docs_only", row.Meta["type"])
		assert.Len(t, row.Meta["recommendedDocs"], 1)
		assert.Equal(t, []interface{}{"anchors/u-anchors"}, row.Meta["foldersUsed"])
	})

	t.Run("legacy assistant_with_docs row keeps the answer text", func(t *testing.T) {
		row := &repositories.Message{
			Role:    "assistant",
			Content: `{"type":"assistant_with_docs","answer":"It bonds to the membrane.","recommendedDocs":[]}`,
		}

		normalizeRow(row)

		assert.Equal(t, "It bonds to the membrane.", row.Content)
		assert.Equal(t, "assistant_with_docs", row.Meta["type"])
		assert.Equal(t, []interface{}{}, row.Meta["foldersUsed"])
	})

	t.Run("plain assistant text is untouched", func(t *testing.T) {
		row := &repositories.Message{
			Role:    "assistant",
			Content: "It bonds to the membrane.",
		}

		normalizeRow(row)

		assert.Equal(t, "It bonds to the membrane.", row.Content)
		assert.Empty(t, row.Meta)
	})

	t.Run("rows with meta are untouched", func(t *testing.T) {
		row := &repositories.Message{
			Role:    "assistant",
			Content: `{"type":"docs_only","recommendedDocs":[]}`,
			Meta:    map[string]interface{}{"type": "u_anchors_answer"},
		}

		normalizeRow(row)

		assert.Equal(t, "u_anchors_answer", row.Meta["type"])
		assert.NotEmpty(t, row.Content)
	})

	t.Run("user rows are untouched", func(t *testing.T) {
		row := &repositories.Message{
			Role:    "user",
			Content: `{"type":"docs_only","recommendedDocs":[]}`,
		}

		normalizeRow(row)

		assert.Empty(t, row.Meta)
		assert.NotEmpty(t, row.Content)
	})
}
