package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, "AutoML Analytics Hub", doc.Info.Title)

	train := doc.Paths.Find("/api/v1/models/{modelId}/train")
	require.NotNil(t, train)
	require.NotNil(t, train.Post)
	assert.Equal(t, "trainModel", train.Post.OperationID)

	internal := doc.Paths.Find("/internal/train")
	require.NotNil(t, internal)
	require.NotNil(t, internal.Post.Security)
	assert.Empty(t, *internal.Post.Security)
}
