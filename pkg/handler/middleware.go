package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/metrics"
	"github.com/devsapp/serverless-automl-hub/pkg/module"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var anonymous = &module.UserInfo{UserId: module.AnonymousUser}

// ApiAuth verify the bearer token of operations declaring bearerAuth.
// A nil user manager disables login and every caller acts as the anonymous user.
func ApiAuth(users *module.UserManager) MiddlewareFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(BearerAuthScopes); !ok {
			return
		}
		if users == nil {
			c.Set(userKey, anonymous)
			return
		}
		user, err := users.VerifyToken(bearerToken(c))
		if err != nil {
			logrus.WithField("path", c.FullPath()).Debugf("auth fail: %s", err.Error())
			handleError(c, http.StatusUnauthorized, config.UNAUTHORIZED)
			return
		}
		c.Set(userKey, user)
	}
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Stat request count and latency by route template
func Stat(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.RecordRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// RequestLogger access log through logrus, used instead of gin.Logger in product mode
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.Error(c.Errors.String())
			return
		}
		entry.Info("request")
	}
}
