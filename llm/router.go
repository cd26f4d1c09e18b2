package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/llm/circuitbreaker"
	"github.com/ruipedro-pinheiro/CHIKA/types"
)

const instrumentationName = "github.com/ruipedro-pinheiro/CHIKA/llm"

// DefaultCallTimeout 单次 responder 调用的默认超时，需容忍较慢的本地模型。
const DefaultCallTimeout = 120 * time.Second

// 单次尝试的结果分类，用于日志与指标。
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
	OutcomeFallback = "fallback"
)

// RouteObserver 接收每次尝试的结果，通常由 metrics.Collector 实现。
type RouteObserver interface {
	ObserveRouteAttempt(responder, outcome string, duration time.Duration)
}

type RouterOptions struct {
	// CallTimeout 单次调用超时，<=0 时使用 DefaultCallTimeout
	CallTimeout time.Duration
	// Credentials 为 RequiresCredential 的部署提供 token；nil 时这些部署总被跳过
	Credentials CredentialSource
	// Breakers 可选的按 responder 熔断器分组
	Breakers *circuitbreaker.Group
	Observer RouteObserver
	Logger   *zap.Logger
}

func normalizeRouterOptions(opts RouterOptions) RouterOptions {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return opts
}

// Attempt 记录一次部署尝试。
type Attempt struct {
	Responder string        `json:"responder"`
	Outcome   string        `json:"outcome"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// RouteResult 是 Route 的详细结果。
type RouteResult struct {
	Text      string    `json:"text"`
	Responder string    `json:"responder"`
	Attempts  []Attempt `json:"attempts"`
}

// Router 按优先级依次尝试部署，失败即降级到下一个。
// 部署列表在构造后不可变，最后一项永远是合成兜底部署。
type Router struct {
	deployments []Deployment
	credentials CredentialSource
	breakers    *circuitbreaker.Group
	observer    RouteObserver
	callTimeout time.Duration
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewRouter 创建路由器。禁用、不完整或重名的部署会被过滤。
func NewRouter(deployments []Deployment, opts RouterOptions) *Router {
	opts = normalizeRouterOptions(opts)
	logger := opts.Logger.With(zap.String("component", "llm_router"))

	r := &Router{
		deployments: normalizeDeployments(deployments, logger),
		credentials: opts.Credentials,
		breakers:    opts.Breakers,
		observer:    opts.Observer,
		callTimeout: opts.CallTimeout,
		tracer:      otel.Tracer(instrumentationName),
		logger:      logger,
	}

	names := make([]string, 0, len(r.deployments))
	for _, d := range r.deployments {
		names = append(names, d.Name)
	}
	logger.Info("llm router ready", zap.Strings("deployments", names))
	return r
}

// Deployments 返回按优先级排序的部署副本（含合成兜底部署）。
func (r *Router) Deployments() []Deployment {
	out := make([]Deployment, len(r.deployments))
	copy(out, r.deployments)
	return out
}

// Order 返回 preferred 优先时的尝试顺序。
func (r *Router) Order(preferred string) []Deployment {
	return orderFor(r.deployments, preferred)
}

// Route 把对话发送给第一个成功的部署并返回其回复文本。从不失败。
func (r *Router) Route(ctx context.Context, turns []types.Turn, preferred string) string {
	return r.RouteDetailed(ctx, turns, preferred).Text
}

// RouteDetailed 同 Route，额外返回实际回复的 responder 与每次尝试的记录。
func (r *Router) RouteDetailed(ctx context.Context, turns []types.Turn, preferred string) RouteResult {
	ctx, span := r.tracer.Start(ctx, "llm.route", trace.WithAttributes(
		attribute.String("chika.preferred", preferred),
		attribute.Int("chika.turns", len(turns)),
	))
	defer span.End()

	messages := TurnsToMessages(turns)
	var attempts []Attempt

	for _, d := range r.Order(preferred) {
		start := time.Now()
		text, outcome, err := r.try(ctx, d, messages)
		attempt := Attempt{Responder: d.Name, Outcome: outcome, Duration: time.Since(start), Err: err}
		attempts = append(attempts, attempt)
		r.observe(attempt)

		eventAttrs := []attribute.KeyValue{
			attribute.String("chika.responder", d.Name),
			attribute.String("chika.outcome", outcome),
		}
		if err != nil {
			eventAttrs = append(eventAttrs, attribute.String("error", err.Error()))
		}
		span.AddEvent("attempt", trace.WithAttributes(eventAttrs...))

		if outcome == OutcomeSuccess || outcome == OutcomeFallback {
			span.SetAttributes(attribute.String("chika.responder", d.Name))
			if outcome == OutcomeFallback {
				span.SetStatus(codes.Error, "all responders unavailable")
			}
			return RouteResult{Text: text, Responder: d.Name, Attempts: attempts}
		}
	}

	// 合成部署永远成功，只有契约被破坏时才会走到这里。
	r.logger.Error("synthetic responder did not answer")
	return RouteResult{Text: NoResponderMessage, Responder: FallbackResponder, Attempts: attempts}
}

func (r *Router) try(ctx context.Context, d Deployment, messages []Message) (string, string, error) {
	log := r.logger.With(zap.String("responder", d.Name))

	if d.Synthetic {
		resp, _ := d.Client.Completion(ctx, &ChatRequest{Model: d.Model, Messages: messages})
		text, _ := resp.FirstContent()
		log.Warn("all responders unavailable, using synthetic fallback")
		return text, OutcomeFallback, nil
	}

	if d.RequiresCredential {
		if r.credentials == nil {
			log.Debug("no credential source configured, skipping")
			return "", OutcomeSkipped, nil
		}
		token, ok := r.credentials.GetValidToken(ctx, d.Name)
		if !ok {
			log.Debug("no valid credential, skipping")
			return "", OutcomeSkipped, nil
		}
		cred := CredentialOverride{APIKey: token, OAuth: true}
		log.Debug("using refreshed credential", zap.Object("credential", cred))
		ctx = WithCredentialOverride(ctx, cred)
	}

	var cb circuitbreaker.CircuitBreaker
	if r.breakers != nil {
		cb = r.breakers.Get(d.Name)
		if err := cb.Allow(); err != nil {
			log.Debug("circuit breaker rejected call", zap.Error(err))
			return "", OutcomeSkipped, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	resp, err := d.Client.Completion(callCtx, &ChatRequest{
		Model:    d.Model,
		Messages: messages,
		Timeout:  r.callTimeout,
	})
	var text string
	if err == nil {
		var ok bool
		if text, ok = resp.FirstContent(); !ok {
			err = &Error{Code: ErrUpstreamError, Message: "empty choices", Provider: d.Name}
		}
	}
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = &Error{Code: ErrUpstreamTimeout, Message: "call timed out after " + r.callTimeout.String(), Retryable: true, Provider: d.Name}
	}
	if cb != nil {
		cb.Record(err)
	}
	if err != nil {
		log.Warn("responder call failed, trying next deployment", zap.Error(err))
		return "", OutcomeError, err
	}
	return text, OutcomeSuccess, nil
}

func (r *Router) observe(a Attempt) {
	if r.observer != nil {
		r.observer.ObserveRouteAttempt(a.Responder, a.Outcome, a.Duration)
	}
}

// TurnsToMessages 把房间对话转换为 responder 请求消息。
func TurnsToMessages(turns []types.Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		role := Role(t.Role)
		if role == "" {
			role = RoleUser
		}
		out = append(out, Message{Role: role, Content: t.Content, Name: t.Author})
	}
	return out
}
