package collaboration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/agent/persistence"
	"github.com/ruipedro-pinheiro/CHIKA/llm"
	"github.com/ruipedro-pinheiro/CHIKA/types"
)

// scriptedRouter 按 responder 依次返回预设回复，并记录每次调用
type scriptedRouter struct {
	mu      sync.Mutex
	replies map[string][]string
	calls   []routeCall
	onCall  func(n int)
}

type routeCall struct {
	preferred string
	turns     []types.Turn
}

func newScriptedRouter(replies map[string][]string) *scriptedRouter {
	return &scriptedRouter{replies: replies}
}

func (r *scriptedRouter) Route(ctx context.Context, turns []types.Turn, preferred string) string {
	r.mu.Lock()
	r.calls = append(r.calls, routeCall{preferred: preferred, turns: append([]types.Turn(nil), turns...)})
	n := len(r.calls)
	reply := "no scripted reply"
	if queue := r.replies[preferred]; len(queue) > 0 {
		reply = queue[0]
		r.replies[preferred] = queue[1:]
	}
	hook := r.onCall
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return reply
}

func (r *scriptedRouter) Calls() []routeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]routeCall(nil), r.calls...)
}

func lastPrompt(c routeCall) string {
	return c.turns[len(c.turns)-1].Content
}

type recordedObservation struct {
	state  string
	rounds int
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []recordedObservation
}

func (o *recordingObserver) ObserveCollaboration(state string, rounds int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, recordedObservation{state: state, rounds: rounds})
}

type failingCreateStore struct {
	*persistence.MemoryDiscussionStore
}

func (s failingCreateStore) Create(ctx context.Context, d *persistence.Discussion) (string, error) {
	return "", errors.New("disk full")
}

func newTestEngine(router Router, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return NewEngine(router, DefaultConfig(), opts)
}

var bothActive = []string{types.ResponderClaude, types.ResponderGPT}

func TestEngine_SingleMention(t *testing.T) {
	router := newScriptedRouter(map[string][]string{"claude": {"Hi from claude"}})
	store := persistence.NewMemoryDiscussionStore()
	engine := newTestEngine(router, Options{Store: store})

	res, err := engine.Collaborate(context.Background(), "room-1", "@claude what do you think?", nil, bothActive)
	require.NoError(t, err)

	assert.Equal(t, StateSingleResponse, res.State)
	assert.Equal(t, "Hi from claude", res.Response)
	assert.Equal(t, "claude", res.Author)
	assert.Empty(t, res.DiscussionID)
	assert.Equal(t, []string{AddresseeUser}, res.Addressees)
	assert.Equal(t, []string{"claude"}, res.Participants)
	assert.Len(t, router.Calls(), 1)

	list, err := store.ListByRoom(context.Background(), "room-1", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEngine_ReviewAgrees(t *testing.T) {
	router := newScriptedRouter(map[string][]string{
		"claude": {"Use a hash map."},
		"gpt":    {"Looks correct to me, nice work."},
	})
	engine := newTestEngine(router, Options{})

	history := []types.Turn{
		types.NewUserTurn("earlier question"),
		types.NewResponderTurn("claude", "earlier answer"),
	}
	res, err := engine.Collaborate(context.Background(), "room-1", "how do I fix this bug?", history, bothActive)
	require.NoError(t, err)

	assert.Equal(t, StateSingleResponse, res.State)
	assert.Equal(t, "Use a hash map.", res.Response)
	assert.Equal(t, "claude", res.Author)
	assert.Empty(t, res.DiscussionID)

	calls := router.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "claude", calls[0].preferred)
	assert.Equal(t, "how do I fix this bug?", lastPrompt(calls[0]))
	assert.Len(t, calls[0].turns, 3)

	// 评审只带历史和评审提示，不重复原始消息
	assert.Equal(t, "gpt", calls[1].preferred)
	require.Len(t, calls[1].turns, 3)
	assert.Equal(t, "earlier question", calls[1].turns[0].Content)
	assert.Equal(t, ReviewPrompt("claude", "Use a hash map."), lastPrompt(calls[1]))
	assert.Equal(t, types.RoleUser, calls[1].turns[2].Role)
}

func TestEngine_DisagreementReachesConsensus(t *testing.T) {
	router := newScriptedRouter(map[string][]string{
		"claude": {"Use recursion.", "Fair, iteration avoids stack growth."},
		"gpt":    {"However, iteration is safer here.", "I agree. Consensus: Use an iterative loop."},
	})
	store := persistence.NewMemoryDiscussionStore()
	observer := &recordingObserver{}
	var events []Event
	engine := newTestEngine(router, Options{
		Store:    store,
		Observer: observer,
		OnEvent:  func(ev Event) { events = append(events, ev) },
	})

	// 第一轮讨论开始时讨论记录已落库且仍为 ongoing
	var seeded []*persistence.Discussion
	router.onCall = func(n int) {
		if n == 3 {
			seeded, _ = store.ListByRoom(context.Background(), "room-1", 0)
		}
	}

	res, err := engine.Collaborate(context.Background(), "room-1", "write code to walk a tree", nil, bothActive)
	require.NoError(t, err)

	require.Len(t, seeded, 1)
	assert.Equal(t, res.DiscussionID, seeded[0].ID)
	assert.Equal(t, persistence.StatusOngoing, seeded[0].Status)
	assert.Nil(t, seeded[0].ResolvedAt)
	require.Len(t, seeded[0].Messages, 2)
	assert.Equal(t, "claude", seeded[0].Messages[0].Responder)
	assert.Equal(t, "Use recursion.", seeded[0].Messages[0].Content)
	assert.Equal(t, "gpt", seeded[0].Messages[1].Responder)
	assert.Equal(t, "However, iteration is safer here.", seeded[0].Messages[1].Content)

	assert.Equal(t, StateResolved, res.State)
	assert.Equal(t, "Use an iterative loop.", res.Response)
	assert.Equal(t, "claude & gpt", res.Author)
	require.NotEmpty(t, res.DiscussionID)

	calls := router.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, []string{"claude", "gpt", "claude", "gpt"},
		[]string{calls[0].preferred, calls[1].preferred, calls[2].preferred, calls[3].preferred})

	firstRound := lastPrompt(calls[2])
	assert.Contains(t, firstRound, "You are claude, discussing with @gpt about: How to respond to: write code to walk a tree")
	assert.Contains(t, firstRound, "@claude: Use recursion.\n\n@gpt: However, iteration is safer here.")

	d, err := store.Get(context.Background(), res.DiscussionID)
	require.NoError(t, err)
	assert.Equal(t, persistence.StatusResolved, d.Status)
	assert.Equal(t, "Use an iterative loop.", d.Consensus)
	assert.Equal(t, []string{"claude", "gpt"}, d.Participants)
	assert.Len(t, d.Messages, 4)
	assert.NotNil(t, d.ResolvedAt)

	require.Len(t, events, 5)
	assert.Equal(t, EventStateChanged, events[0].Type)
	assert.Equal(t, StateReviewing, events[0].State)
	assert.Equal(t, StateDiscussing, events[1].State)
	assert.Equal(t, res.DiscussionID, events[1].DiscussionID)
	assert.Equal(t, EventMessage, events[2].Type)
	assert.Equal(t, 1, events[2].Round)
	assert.Equal(t, "claude", events[2].Responder)
	assert.Equal(t, 2, events[3].Round)
	assert.Equal(t, EventCompleted, events[4].Type)
	assert.Same(t, res, events[4].Result)

	require.Len(t, observer.obs, 1)
	assert.Equal(t, recordedObservation{state: "resolved", rounds: 2}, observer.obs[0])
}

func TestEngine_ExtraMentionsDoNotJoinDiscussion(t *testing.T) {
	all := []string{types.ResponderClaude, types.ResponderGPT, types.ResponderGemini}
	router := newScriptedRouter(map[string][]string{
		"claude": {"Plan A.", "Fine. Consensus: Plan B."},
		"gpt":    {"Actually, plan B."},
	})
	store := persistence.NewMemoryDiscussionStore()
	engine := newTestEngine(router, Options{Store: store})

	res, err := engine.Collaborate(context.Background(), "room-1", "@claude @gpt @gemini which plan?", nil, all)
	require.NoError(t, err)

	assert.Equal(t, StateResolved, res.State)
	assert.Equal(t, []string{"claude", "gpt"}, res.Participants)
	assert.Equal(t, "claude & gpt", res.Author)
	for _, c := range router.Calls() {
		assert.NotEqual(t, "gemini", c.preferred)
	}

	d, err := store.Get(context.Background(), res.DiscussionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"claude", "gpt"}, d.Participants)

	agreed := newScriptedRouter(map[string][]string{
		"claude": {"Plan A."},
		"gpt":    {"Looks right."},
	})
	res, err = newTestEngine(agreed, Options{}).Collaborate(context.Background(), "room-2", "@claude @gpt @gemini which plan?", nil, all)
	require.NoError(t, err)
	assert.Equal(t, StateSingleResponse, res.State)
	assert.Equal(t, []string{"claude", "gpt"}, res.Participants)
}

func TestEngine_DiscussionTimesOut(t *testing.T) {
	router := newScriptedRouter(map[string][]string{
		"claude": {"Plan A.", "Still prefer A.", "A, final word."},
		"gpt":    {"Actually B is better.", "Still prefer B."},
	})
	store := persistence.NewMemoryDiscussionStore()
	engine := newTestEngine(router, Options{Store: store})

	res, err := engine.Collaborate(context.Background(), "room-1", "hello there", nil, bothActive)
	require.NoError(t, err)

	assert.Equal(t, StateTimeout, res.State)
	assert.Equal(t, "A, final word.", res.Response)
	assert.Equal(t, "claude & gpt", res.Author)
	assert.Len(t, router.Calls(), 2+DefaultMaxRounds)

	d, err := store.Get(context.Background(), res.DiscussionID)
	require.NoError(t, err)
	assert.Equal(t, persistence.StatusTimeout, d.Status)
	assert.Equal(t, "A, final word.", d.Consensus)
	assert.Len(t, d.Messages, 2+DefaultMaxRounds)
}

func TestEngine_MaxRoundsFromConfig(t *testing.T) {
	router := newScriptedRouter(map[string][]string{
		"claude": {"One.", "Two."},
		"gpt":    {"I disagree."},
	})
	engine := NewEngine(router, Config{MaxRounds: 1}, Options{Logger: zap.NewNop()})

	res, err := engine.Collaborate(context.Background(), "room-1", "hello", nil, bothActive)
	require.NoError(t, err)
	assert.Equal(t, StateTimeout, res.State)
	assert.Equal(t, "Two.", res.Response)
	assert.Len(t, router.Calls(), 3)
}

func TestEngine_CancellationMarksTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := newScriptedRouter(map[string][]string{
		"claude": {"Plan A.", "round reply"},
		"gpt":    {"However, plan B."},
	})
	// 第一轮讨论调用期间取消
	router.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	store := persistence.NewMemoryDiscussionStore()
	engine := newTestEngine(router, Options{Store: store})

	res, err := engine.Collaborate(ctx, "room-1", "hello", nil, bothActive)
	require.NoError(t, err)

	assert.Equal(t, StateTimeout, res.State)
	assert.Equal(t, "However, plan B.", res.Response)

	d, err := store.Get(context.Background(), res.DiscussionID)
	require.NoError(t, err)
	assert.Equal(t, persistence.StatusTimeout, d.Status)
	assert.Len(t, d.Messages, 2, "cancelled round is not recorded")
}

func TestEngine_EmptyRoom(t *testing.T) {
	engine := newTestEngine(newScriptedRouter(nil), Options{})

	res, err := engine.Collaborate(context.Background(), "  ", "hello", nil, bothActive)
	assert.Nil(t, res)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestEngine_StoreCreateFailure(t *testing.T) {
	router := newScriptedRouter(map[string][]string{
		"claude": {"Plan A."},
		"gpt":    {"I disagree."},
	})
	engine := newTestEngine(router, Options{Store: failingCreateStore{persistence.NewMemoryDiscussionStore()}})

	res, err := engine.Collaborate(context.Background(), "room-1", "hello", nil, bothActive)
	assert.Nil(t, res)
	assert.Equal(t, types.ErrStoreFailure, types.GetErrorCode(err))
	assert.ErrorContains(t, err, "disk full")
}

func TestEngine_RoomBusy(t *testing.T) {
	locker := NewRoomLocker()
	unlock, err := locker.Lock(context.Background(), "room-1")
	require.NoError(t, err)
	defer unlock()

	engine := NewEngine(newScriptedRouter(nil), Config{RoomLockTimeout: 20 * time.Millisecond}, Options{Locker: locker})

	res, err := engine.Collaborate(context.Background(), "room-1", "hello", nil, bothActive)
	assert.Nil(t, res)
	assert.Equal(t, types.ErrRoomBusy, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))

	// 其他房间不受影响
	other, err := engine.Collaborate(context.Background(), "room-2", "@claude hi", nil, bothActive)
	require.NoError(t, err)
	assert.Equal(t, StateSingleResponse, other.State)
}

func TestEngine_NoActiveResponders(t *testing.T) {
	router := newScriptedRouter(map[string][]string{"claude": {"default answer"}})
	engine := newTestEngine(router, Options{})

	res, err := engine.Collaborate(context.Background(), "room-1", "hello", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultResponder, res.Author)
	assert.Equal(t, "default answer", res.Response)
}

// ---------------------------------------------------------------------------
// 与真实 llm.Router 联调：responder 失败只会变成兜底文本，引擎看不到错误
// ---------------------------------------------------------------------------

func replyWith(name, text string) llm.Deployment {
	return llm.Deployment{Name: name, Model: name, Priority: 1, Enabled: true,
		Client: llm.ResponderFunc(name, func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{
				Provider: name,
				Choices:  []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant, Content: text}}},
			}, nil
		})}
}

func failing(name string, priority int) llm.Deployment {
	return llm.Deployment{Name: name, Model: name, Priority: priority, Enabled: true,
		Client: llm.ResponderFunc(name, func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
			return nil, errors.New("connection refused")
		})}
}

func TestEngine_RouterFallbackAnswers(t *testing.T) {
	router := llm.NewRouter([]llm.Deployment{failing("claude", 1)}, llm.RouterOptions{Logger: zap.NewNop()})
	engine := newTestEngine(router, Options{})

	res, err := engine.Collaborate(context.Background(), "room-1", "@claude hi", nil, bothActive)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, StateSingleResponse, res.State)
	assert.Equal(t, llm.NoResponderMessage, res.Response)
	assert.Equal(t, "claude", res.Author)
}

func TestEngine_RouterFailoverDuringDiscussion(t *testing.T) {
	router := llm.NewRouter([]llm.Deployment{
		replyWith("claude", "However, I would keep plan A."),
		failing("gpt", 2),
	}, llm.RouterOptions{Logger: zap.NewNop()})
	store := persistence.NewMemoryDiscussionStore()
	engine := newTestEngine(router, Options{Store: store})

	res, err := engine.Collaborate(context.Background(), "room-1", "hello", nil, bothActive)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, StateTimeout, res.State)
	assert.Equal(t, "However, I would keep plan A.", res.Response)

	d, err := store.Get(context.Background(), res.DiscussionID)
	require.NoError(t, err)
	assert.Equal(t, persistence.StatusTimeout, d.Status)
	require.Len(t, d.Messages, 2+DefaultMaxRounds)
	last, ok := d.LastMessage()
	require.True(t, ok)
	assert.Equal(t, res.Response, last.Content)
}
