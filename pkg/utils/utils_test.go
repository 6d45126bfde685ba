package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewId(t *testing.T) {
	a, b := NewId(), NewId()
	assert.NotEqual(t, a, b)
	assert.True(t, IsId(a))
	assert.False(t, IsId("../etc"))
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "sales.csv", SafeFileName("sales.csv"))
	assert.Equal(t, "passwd", SafeFileName("../../etc/passwd"))
	assert.Equal(t, "my_data_1_.xlsx", SafeFileName("my data(1).xlsx"))
	assert.Equal(t, "b.json", SafeFileName(`a\b.json`))
	assert.Equal(t, "file", SafeFileName(""))
}

func TestSecret(t *testing.T) {
	hashed, err := HashSecret("worker-key")
	assert.Nil(t, err)
	assert.True(t, MatchSecret("worker-key", hashed))
	assert.False(t, MatchSecret("", hashed))
	assert.False(t, MatchSecret("other", hashed))
}
