package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	defer Init("dev")
	Init("debug")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	Init("product")
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
	_, ok := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)

	entry := JobLogger("m", "r", "u")
	assert.Equal(t, "m", entry.Data["modelId"])
	assert.Equal(t, "r", entry.Data["runId"])
}
