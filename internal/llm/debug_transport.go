package llm

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"musecanvas-backend/pkg/logger"
)

// debugTransport 按配置记录发往补全服务的请求，排查提示词问题时打开。
// Authorization 等敏感请求头一律不落日志。
type debugTransport struct {
	base    http.RoundTripper
	enabled bool
}

func newDebugTransport(base http.RoundTripper, enabled bool) *debugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &debugTransport{base: base, enabled: enabled}
}

func (t *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.enabled {
		return t.base.RoundTrip(req)
	}

	logger.Infof("🔍 [LLM Debug] %s %s", req.Method, req.URL.String())
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			logger.Infof("🔍 [LLM Debug] Header %s: [REDACTED]", name)
			continue
		}
		logger.Infof("🔍 [LLM Debug] Header %s: %s", name, strings.Join(values, ", "))
	}

	if req.Body != nil {
		bodyBytes, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err == nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			logger.Infof("🔍 [LLM Debug] Request Body (%d bytes): %s", len(bodyBytes), string(bodyBytes))
		}
	}

	return t.base.RoundTrip(req)
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range []string{"authorization", "x-api-key", "x-auth-token", "cookie"} {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
