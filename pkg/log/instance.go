package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init log level and format by service mode debug|dev|product
func Init(mode string) {
	logrus.SetOutput(os.Stdout)
	logrus.SetReportCaller(false)
	switch mode {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
		// include function and file
		logrus.SetReportCaller(true)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "dev":
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// JobLogger entry carrying the training run identity
func JobLogger(modelId, runId, userId string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"modelId": modelId,
		"runId":   runId,
		"userId":  userId,
	})
}
