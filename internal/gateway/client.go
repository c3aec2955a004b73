package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/util"
	"marketplace_backend/pkg/logger"
	"marketplace_backend/pkg/monitoring"
	"marketplace_backend/pkg/tracing"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// UpstreamError 协作服务调用失败。Transient 表示超时、连接失败或 5xx，
// 同一请求（带相同幂等键）可以安全重放
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	Transient  bool
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s unavailable: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s responded %d: %s", e.Service, e.StatusCode, e.Message)
}

func (e *UpstreamError) Kind() util.ErrorKind {
	if e.Transient {
		return util.KindUpstreamUnavailable
	}
	return util.KindUpstreamRejected
}

// HTTPStatus 上游的 4xx 原样透传，其余统一为 502
func (e *UpstreamError) HTTPStatus() int {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type client struct {
	service string
	http    *resty.Client
}

func newClient(service, baseURL string, cfg config.CollaboratorsConfig) *client {
	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(config.CollaboratorRetryMaxWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(retryable)

	return &client{service: service, http: r}
}

// retryable 只重放 GET 和携带幂等键的请求
func retryable(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil {
		return false
	}
	if r.Request.Method != http.MethodGet && r.Request.Header.Get(util.HeaderIdempotencyKey) == "" {
		return false
	}
	if err != nil {
		return true
	}
	return r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
}

type call struct {
	method         string
	path           string
	pathParams     map[string]string
	operation      string
	query          map[string]string
	body           interface{}
	idempotencyKey string
}

// do 执行一次调用并把响应体解码到 out；非 2xx 统一转换为 *UpstreamError
func (c *client) do(ctx context.Context, in call, out interface{}) error {
	req := c.http.R()
	ctx, span := tracing.StartClientSpan(ctx, c.service, in.operation, propagation.HeaderCarrier(req.Header))
	req.SetContext(ctx)

	if in.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(in.body)
	}
	if in.idempotencyKey != "" {
		req.SetHeader(util.HeaderIdempotencyKey, in.idempotencyKey)
	}
	if len(in.pathParams) > 0 {
		// 路径参数逐段转义，不能改写上游路径或查询串
		req.SetPathParams(in.pathParams)
	}
	if len(in.query) > 0 {
		req.SetQueryParams(in.query)
	}

	start := time.Now()
	resp, err := req.Execute(in.method, in.path)
	monitoring.CollaboratorDuration.WithLabelValues(c.service).Observe(time.Since(start).Seconds())

	err = c.classify(resp, err)
	tracing.EndSpan(span, err)
	if err != nil {
		outcome := "rejected"
		if util.IsTransient(err) {
			outcome = "unavailable"
		}
		monitoring.CollaboratorRequests.WithLabelValues(c.service, outcome).Inc()
		logger.Log.Warn("Collaborator call failed",
			zap.String("service", c.service),
			zap.String("operation", in.operation),
			zap.Error(err))
		return err
	}
	monitoring.CollaboratorRequests.WithLabelValues(c.service, "ok").Inc()

	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &UpstreamError{Service: c.service, StatusCode: resp.StatusCode(), Message: "malformed response: " + err.Error()}
		}
	}
	return nil
}

func (c *client) classify(resp *resty.Response, err error) error {
	if err != nil {
		return &UpstreamError{Service: c.service, Message: err.Error(), Transient: true}
	}
	if resp.IsSuccess() {
		return nil
	}
	status := resp.StatusCode()
	return &UpstreamError{
		Service:    c.service,
		StatusCode: status,
		Message:    upstreamMessage(resp.Body(), resp.Status()),
		Transient:  status >= http.StatusInternalServerError || status == http.StatusTooManyRequests,
	}
}

func upstreamMessage(body []byte, fallback string) string {
	var payload struct {
		Message interface{} `json:"message"`
		Error   interface{} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		for _, v := range []interface{}{payload.Message, payload.Error} {
			switch m := v.(type) {
			case string:
				if m != "" {
					return m
				}
			case []interface{}:
				if len(m) > 0 {
					return fmt.Sprint(m[0])
				}
			}
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		if len(s) > 256 {
			s = s[:256]
		}
		return s
	}
	return fallback
}
