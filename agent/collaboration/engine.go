package collaboration

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/agent/persistence"
	"github.com/ruipedro-pinheiro/CHIKA/types"
)

const instrumentationName = "github.com/ruipedro-pinheiro/CHIKA/agent/collaboration"

// State 引擎状态
type State string

const (
	StateSingleResponse State = "single-response" // 终态，无讨论
	StateReviewing      State = "reviewing"       // 第二个 responder 评审中
	StateDiscussing     State = "discussing"      // 多轮讨论中
	StateResolved       State = "resolved"        // 终态，达成共识
	StateTimeout        State = "timeout"         // 终态，轮数耗尽或被取消
)

// Terminal 报告是否为终态
func (s State) Terminal() bool {
	return s == StateSingleResponse || s == StateResolved || s == StateTimeout
}

const (
	// DefaultMaxRounds 默认讨论轮数
	DefaultMaxRounds = 3
	// finalizeTimeout 调用方取消后写入终态的最长时间
	finalizeTimeout = 5 * time.Second
)

// AddresseeUser 协作结果的默认收件人
const AddresseeUser = "@user"

// Router 为指定 responder 路由一次对话，总是返回文本。
// llm.Router 实现该接口。
type Router interface {
	Route(ctx context.Context, turns []types.Turn, preferred string) string
}

// Observer 接收协作结果，通常由 metrics.Collector 实现
type Observer interface {
	ObserveCollaboration(state string, rounds int, duration time.Duration)
}

// Result 协作结果
type Result struct {
	Response     string   `json:"response"`
	Author       string   `json:"author"`
	DiscussionID string   `json:"discussion_id,omitempty"`
	Addressees   []string `json:"addressees"`
	State        State    `json:"state"`
	Participants []string `json:"participants"`
}

// Config 引擎配置
type Config struct {
	// MaxRounds 讨论最大轮数
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`
	// RoomLockTimeout 等待同房间前一个协作的最长时间，0 表示只受 ctx 约束
	RoomLockTimeout time.Duration `json:"room_lock_timeout" yaml:"room_lock_timeout"`
	// Timeout 单次协作总超时，0 表示只受 ctx 约束
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxRounds:       DefaultMaxRounds,
		RoomLockTimeout: 30 * time.Second,
	}
}

// Options 可选依赖
type Options struct {
	// Store 讨论存储，nil 时使用内存存储
	Store persistence.DiscussionStore
	// Locker 房间锁，nil 时创建新的
	Locker *RoomLocker
	// Observer 结果观察者
	Observer Observer
	// OnEvent 接收状态变化与讨论发言，在协作 goroutine 中同步调用
	OnEvent func(Event)
	Logger  *zap.Logger
}

// Engine 协作与共识引擎
type Engine struct {
	router   Router
	store    persistence.DiscussionStore
	locker   *RoomLocker
	observer Observer
	onEvent  func(Event)
	config   Config
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine 创建协作引擎
func NewEngine(router Router, config Config, opts Options) *Engine {
	if config.MaxRounds <= 0 {
		config.MaxRounds = DefaultMaxRounds
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = persistence.NewMemoryDiscussionStore()
	}
	if opts.Locker == nil {
		opts.Locker = NewRoomLocker()
	}
	return &Engine{
		router:   router,
		store:    opts.Store,
		locker:   opts.Locker,
		observer: opts.Observer,
		onEvent:  opts.OnEvent,
		config:   config,
		tracer:   otel.Tracer(instrumentationName),
		logger:   opts.Logger.With(zap.String("component", "collaboration_engine")),
		now:      time.Now,
	}
}

// Store 返回引擎使用的讨论存储
func (e *Engine) Store() persistence.DiscussionStore { return e.store }

// Collaborate 处理一条用户消息并返回最终回复。
//
// 只有 roomID 为空、房间锁等待超时或创建讨论记录失败时返回错误；
// responder 故障由 Router 消化，不会传到这里。
func (e *Engine) Collaborate(ctx context.Context, roomID, message string, history []types.Turn, active []string) (*Result, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "room id is required")
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	unlock, err := e.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := e.tracer.Start(ctx, "collaboration.collaborate", trace.WithAttributes(
		attribute.String("room.id", roomID),
	))
	defer span.End()

	start := e.now()
	run := &collaboration{engine: e, roomID: roomID, message: message, history: history}
	run.participants = SelectParticipants(message, active)

	log := e.logger.With(zap.String("room_id", roomID), zap.Strings("participants", run.participants))
	log.Debug("collaboration started", zap.String("category", Classify(message)))

	res, err := run.execute(ctx, log)

	if res != nil {
		span.SetAttributes(
			attribute.String("collaboration.state", string(res.State)),
			attribute.Int("collaboration.rounds", run.rounds),
		)
		if e.observer != nil {
			e.observer.ObserveCollaboration(string(res.State), run.rounds, e.now().Sub(start))
		}
		e.emit(Event{Type: EventCompleted, RoomID: roomID, State: res.State, DiscussionID: res.DiscussionID, Result: res})
		log.Info("collaboration finished",
			zap.String("state", string(res.State)),
			zap.Int("rounds", run.rounds),
			zap.String("discussion_id", res.DiscussionID))
	}
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (e *Engine) lockRoom(ctx context.Context, roomID string) (func(), error) {
	lockCtx := ctx
	if e.config.RoomLockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, e.config.RoomLockTimeout)
		defer cancel()
	}
	unlock, err := e.locker.Lock(lockCtx, roomID)
	if err != nil {
		return nil, types.NewError(types.ErrRoomBusy, "another collaboration is running in this room").
			WithCause(err).
			WithRetryable(true)
	}
	return unlock, nil
}

func (e *Engine) emit(ev Event) {
	if e.onEvent == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	e.onEvent(ev)
}

// collaboration 是单次 Collaborate 调用的状态
type collaboration struct {
	engine       *Engine
	roomID       string
	message      string
	history      []types.Turn
	participants []string
	rounds       int
}

// ask 在历史对话后追加一条用户提示并路由给 preferred
func (c *collaboration) ask(ctx context.Context, preferred, prompt string) string {
	turns := make([]types.Turn, 0, len(c.history)+1)
	turns = append(turns, c.history...)
	turns = append(turns, types.NewUserTurn(prompt))
	return c.engine.router.Route(ctx, turns, preferred)
}

func (c *collaboration) result(state State, response, author, discussionID string) *Result {
	return &Result{
		Response:     response,
		Author:       author,
		DiscussionID: discussionID,
		Addressees:   []string{AddresseeUser},
		State:        state,
		Participants: append([]string(nil), c.participants...),
	}
}

func (c *collaboration) execute(ctx context.Context, log *zap.Logger) (*Result, error) {
	e := c.engine
	primary := c.participants[0]
	primaryReply := c.ask(ctx, primary, c.message)

	if len(c.participants) < 2 {
		return c.result(StateSingleResponse, primaryReply, primary, ""), nil
	}

	// 评审与讨论只在前两位之间进行，结果也只报告实际参与者
	c.participants = c.participants[:2]
	secondary := c.participants[1]
	e.emit(Event{Type: EventStateChanged, RoomID: c.roomID, State: StateReviewing, Responder: secondary})
	review := c.ask(ctx, secondary, ReviewPrompt(primary, primaryReply))

	pattern, disagree := MatchDisagreement(review)
	if !disagree {
		log.Debug("review agreed", zap.String("reviewer", secondary))
		return c.result(StateSingleResponse, primaryReply, primary, ""), nil
	}
	log.Debug("review disagreed", zap.String("reviewer", secondary), zap.String("pattern", pattern))

	return c.discuss(ctx, log, primaryReply, review)
}

func (c *collaboration) discuss(ctx context.Context, log *zap.Logger, primaryReply, review string) (*Result, error) {
	e := c.engine
	pair := c.participants
	now := e.now()

	d := &persistence.Discussion{
		RoomID:       c.roomID,
		Participants: append([]string(nil), pair...),
		Topic:        Topic(c.message),
		Status:       persistence.StatusOngoing,
		Messages: []persistence.DiscussionMessage{
			{Responder: pair[0], Content: primaryReply, Timestamp: now},
			{Responder: pair[1], Content: review, Timestamp: now},
		},
	}
	id, err := e.store.Create(ctx, d)
	if err != nil {
		return nil, types.NewError(types.ErrStoreFailure, "failed to create discussion").WithCause(err)
	}
	log = log.With(zap.String("discussion_id", id))
	e.emit(Event{Type: EventStateChanged, RoomID: c.roomID, State: StateDiscussing, DiscussionID: id})

	n := len(pair)
	for r := 0; r < e.config.MaxRounds; r++ {
		if ctx.Err() != nil {
			log.Warn("collaboration cancelled during discussion", zap.Int("round", r), zap.Error(ctx.Err()))
			break
		}

		current, other := pair[r%n], pair[(r+1)%n]
		reply := c.ask(ctx, current, RoundPrompt(current, other, d.Topic, d.Messages))
		if ctx.Err() != nil {
			// 取消后 Router 只能返回兜底文本，不计入讨论
			log.Warn("collaboration cancelled during round", zap.Int("round", r), zap.Error(ctx.Err()))
			break
		}

		if err := d.AddMessage(current, reply, e.now()); err != nil {
			break
		}
		c.rounds++
		e.emit(Event{Type: EventMessage, RoomID: c.roomID, State: StateDiscussing, DiscussionID: id, Responder: current, Content: reply, Round: r + 1})

		if pattern, ok := MatchConsensus(reply); ok {
			_ = d.Resolve(ExtractConsensus(reply), e.now())
			log.Debug("consensus reached", zap.String("responder", current), zap.String("pattern", pattern))
			c.persist(ctx, log, d)
			break
		}
		c.persist(ctx, log, d)
	}

	state := StateResolved
	if d.Status != persistence.StatusResolved {
		state = StateTimeout
		consensus := ""
		if last, ok := d.LastMessage(); ok {
			consensus = last.Content
		}
		_ = d.Expire(consensus, e.now())
		c.persist(ctx, log, d)
	}

	return c.result(state, d.Consensus, strings.Join(pair, " & "), id), nil
}

// persist 写回讨论记录；失败只记录日志。ctx 已取消时改用独立的短超时上下文，
// 保证讨论不会停留在 ongoing。
func (c *collaboration) persist(ctx context.Context, log *zap.Logger, d *persistence.Discussion) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
	}
	if err := c.engine.store.Update(ctx, d); err != nil {
		log.Warn("failed to persist discussion",
			zap.String("status", string(d.Status)),
			zap.Int("messages", len(d.Messages)),
			zap.Error(err))
	}
}
