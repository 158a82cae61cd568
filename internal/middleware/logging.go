package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"ahsan-gpt-go/pkg/log"

	"github.com/gin-gonic/gin"
)

const redacted = "[REDACTED]"

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 将响应同时写入 gin.ResponseWriter 和内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志。
// 路径包含 sensitivePrefixes 之一的请求（登录、注册、重置密码等）不记录请求体和响应体。
func RequestLogger(sensitivePrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path
		sensitive := false
		for _, p := range sensitivePrefixes {
			if strings.HasPrefix(path, p) {
				sensitive = true
				break
			}
		}

		var requestBody []byte
		if c.Request.Body != nil && !sensitive {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		reqLog, respLog := string(requestBody), blw.body.String()
		if sensitive {
			reqLog, respLog = redacted, redacted
		}
		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"requestBody", reqLog,
			"responseBody", respLog,
		)
	}
}
