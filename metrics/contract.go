package metrics

import "strconv"

const (
	// 常见的标签
	LabelService     = "service"
	LabelOperation   = "operation"
	LabelMethod      = "method"
	LabelRoute       = "route"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
)

const (
	// 常见的操作
	OperationHTTPServer = "http.server"
)

const (
	// 常见的结果
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeThrottled = "throttled"
)

// UnknownRoute 未命中路由时使用的标签值
const UnknownRoute = "unknown"

// HTTPStatusClass 返回 HTTP 状态类标签值：1xx/2xx/3xx/4xx/5xx/unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 将 HTTP 状态码映射到结果标签，429 单独计为 throttled
func HTTPOutcome(status int) string {
	switch {
	case status >= 200 && status < 400:
		return OutcomeSuccess
	case status == 429:
		return OutcomeThrottled
	default:
		return OutcomeError
	}
}
