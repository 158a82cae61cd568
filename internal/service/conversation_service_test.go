package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ahsan-gpt-go/internal/model"
	"ahsan-gpt-go/internal/repository"
	"ahsan-gpt-go/pkg/llm"
	"ahsan-gpt-go/pkg/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// gatewayFunc 把函数适配为 ModelGateway。
type gatewayFunc func(ctx context.Context, history []model.ChatMessage) (string, error)

func (f gatewayFunc) Complete(ctx context.Context, history []model.ChatMessage, _ ...CompleteOption) (string, error) {
	return f(ctx, history)
}

func echoGateway() gatewayFunc {
	return func(ctx context.Context, history []model.ChatMessage) (string, error) {
		return "echo: " + history[len(history)-1].Content, nil
	}
}

type fixture struct {
	svc     ConversationService
	clock   *testClock
	limiter *ratelimit.Limiter
}

func newFixture(t *testing.T, gw ModelGateway, maxRequests int, window time.Duration) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)}
	limiter := ratelimit.New(maxRequests, window, clock)
	svc := NewConversationService(context.Background(), limiter, gw, repository.NewMemoryPersister(),
		WithClock(clock), WithIDGenerator(sequentialIDs()))
	return &fixture{svc: svc, clock: clock, limiter: limiter}
}

func assertSetInvariants(t *testing.T, set model.ConversationSet) {
	t.Helper()
	require.NotEmpty(t, set.Conversations)
	_, found := set.Find(set.ActiveID)
	assert.True(t, found, "active id %q must resolve", set.ActiveID)
}

func TestNewService_StartsWithOneConversation(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	set := f.svc.Snapshot()

	require.Len(t, set.Conversations, 1)
	assert.Equal(t, model.DefaultTitle, set.Conversations[0].Title)
	assert.Equal(t, model.ModeQuick, set.Conversations[0].Mode)
	assert.Empty(t, set.Conversations[0].Messages)
	assertSetInvariants(t, set)
}

func TestNewConversation_PrependsAndActivates(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	first := f.svc.ActiveConversation()

	conv := f.svc.NewConversation(model.ModeCreative)

	set := f.svc.Snapshot()
	require.Len(t, set.Conversations, 2)
	assert.Equal(t, conv.ID, set.Conversations[0].ID)
	assert.Equal(t, first.ID, set.Conversations[1].ID)
	assert.Equal(t, conv.ID, set.ActiveID)
	assert.Equal(t, model.ModeCreative, conv.Mode)
}

func TestSelectConversation_UnknownIsIgnored(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	a := f.svc.ActiveConversation()
	b := f.svc.NewConversation("")

	assert.False(t, f.svc.SelectConversation("missing"))
	assert.Equal(t, b.ID, f.svc.Snapshot().ActiveID)

	assert.True(t, f.svc.SelectConversation(a.ID))
	assert.Equal(t, a.ID, f.svc.Snapshot().ActiveID)
}

func TestDeleteConversation_ActiveMovesToNewFirst(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	a := f.svc.ActiveConversation()
	b := f.svc.NewConversation("")
	c := f.svc.NewConversation("")
	// 顺序：c, b, a
	require.True(t, f.svc.SelectConversation(c.ID))

	require.True(t, f.svc.DeleteConversation(c.ID))
	set := f.svc.Snapshot()
	assert.Equal(t, b.ID, set.ActiveID)
	assert.Equal(t, []string{b.ID, a.ID}, ids(set))
}

func TestDeleteConversation_InactiveKeepsActive(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	a := f.svc.ActiveConversation()
	b := f.svc.NewConversation("")

	require.True(t, f.svc.DeleteConversation(a.ID))
	assert.Equal(t, b.ID, f.svc.Snapshot().ActiveID)
}

func TestDeleteConversation_LastOneSynthesizesFresh(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	_, err := f.svc.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	only := f.svc.ActiveConversation()

	require.True(t, f.svc.DeleteConversation(only.ID))

	set := f.svc.Snapshot()
	require.Len(t, set.Conversations, 1)
	fresh := set.Conversations[0]
	assert.NotEqual(t, only.ID, fresh.ID)
	assert.Equal(t, model.DefaultTitle, fresh.Title)
	assert.Empty(t, fresh.Messages)
	assert.Equal(t, fresh.ID, set.ActiveID)
}

func TestDeleteConversation_UnknownIsNoop(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	before := f.svc.Snapshot()
	assert.False(t, f.svc.DeleteConversation("missing"))
	assert.Equal(t, before, f.svc.Snapshot())
}

func TestSetInvariants_RandomSequence(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	for i := 0; i < 200; i++ {
		set := f.svc.Snapshot()
		switch i % 5 {
		case 0, 3:
			f.svc.NewConversation("")
		case 1:
			f.svc.DeleteConversation(set.ActiveID)
		case 2:
			f.svc.DeleteConversation(set.Conversations[len(set.Conversations)-1].ID)
		case 4:
			for _, c := range set.Conversations {
				f.svc.DeleteConversation(c.ID)
			}
		}
		assertSetInvariants(t, f.svc.Snapshot())
	}
}

func TestSetMode_OnlyAffectsFutureConversations(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	existing := f.svc.ActiveConversation()

	require.NoError(t, f.svc.SetMode(model.ModeDeveloper))
	conv := f.svc.NewConversation("")

	assert.Equal(t, model.ModeDeveloper, conv.Mode)
	got, _ := f.svc.Snapshot().Find(existing.ID)
	assert.Equal(t, model.ModeQuick, got.Mode)
	assert.Error(t, f.svc.SetMode("loud"))
	assert.Equal(t, model.ModeDeveloper, f.svc.Mode())
}

func TestSendMessage_EmptyIsNoop(t *testing.T) {
	called := false
	f := newFixture(t, gatewayFunc(func(ctx context.Context, h []model.ChatMessage) (string, error) {
		called = true
		return "", nil
	}), 10, time.Minute)

	_, err := f.svc.SendMessage(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = f.svc.SendMessage(context.Background(), "   \n\t", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.Empty(t, f.svc.ActiveConversation().Messages)
	assert.False(t, called)
	assert.True(t, f.limiter.CanMakeRequest())
}

func TestSendMessage_AttachmentsOnlyIsAccepted(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	files := []model.FileRef{{Name: "a.pdf", MimeType: "application/pdf", SizeBytes: 42}}

	res, err := f.svc.SendMessage(context.Background(), "", files)
	require.NoError(t, err)

	msgs := f.svc.ActiveConversation().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, files, msgs[0].Attachments)
	assert.Equal(t, model.DefaultTitle, f.svc.ActiveConversation().Title)

	files[0].Name = "mutated"
	assert.Equal(t, "a.pdf", f.svc.ActiveConversation().Messages[0].Attachments[0].Name)
	assert.Equal(t, "a.pdf", res.UserMessage.Attachments[0].Name)
}

func TestSendMessage_SuccessAppendsUserThenAssistant(t *testing.T) {
	var seen []model.ChatMessage
	f := newFixture(t, gatewayFunc(func(ctx context.Context, h []model.ChatMessage) (string, error) {
		seen = h
		return "answer " + fmt.Sprint(len(h)), nil
	}), 10, time.Minute)

	_, err := f.svc.SendMessage(context.Background(), "first", nil)
	require.NoError(t, err)
	res, err := f.svc.SendMessage(context.Background(), "second", nil)
	require.NoError(t, err)

	assert.False(t, res.Failed)
	assert.Equal(t, "answer 3", res.Reply.Content)
	assert.Equal(t, []model.ChatMessage{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "answer 1"},
		{Role: model.RoleUser, Content: "second"},
	}, seen)

	msgs := f.svc.ActiveConversation().Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser, model.RoleAssistant}, roles(msgs))
	assert.False(t, f.svc.IsLoading())
}

func TestSendMessage_TitleSetOnce(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	long := "This is a rather long first message that exceeds forty characters"

	_, err := f.svc.SendMessage(context.Background(), long, nil)
	require.NoError(t, err)
	assert.Equal(t, long[:40], f.svc.ActiveConversation().Title)

	_, err = f.svc.SendMessage(context.Background(), "another message entirely", nil)
	require.NoError(t, err)
	assert.Equal(t, long[:40], f.svc.ActiveConversation().Title)
}

func TestSendMessage_TitleKeepsLeadingWhitespace(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)

	_, err := f.svc.SendMessage(context.Background(), "   hello world", nil)
	require.NoError(t, err)
	assert.Equal(t, "   hello world", f.svc.ActiveConversation().Title)
}

func TestSendMessage_TitleOnlyFromFirstAppend(t *testing.T) {
	f := newFixture(t, echoGateway(), 1, time.Second)
	_, err := f.svc.SendMessage(context.Background(), "fills the window", nil)
	require.NoError(t, err)

	f.svc.NewConversation(model.ModeQuick)
	res, err := f.svc.SendMessage(context.Background(), "denied message", nil)
	require.NoError(t, err)
	require.True(t, res.RateLimited)

	f.clock.Advance(time.Second)
	res, err = f.svc.SendMessage(context.Background(), "later message", nil)
	require.NoError(t, err)
	require.False(t, res.RateLimited)

	conv := f.svc.ActiveConversation()
	assert.Len(t, conv.Messages, 3)
	assert.Equal(t, model.DefaultTitle, conv.Title)
}

func TestSendMessage_UpdatedAtRefreshes(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	created := f.svc.ActiveConversation().UpdatedAt
	f.clock.Advance(5 * time.Second)

	_, err := f.svc.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.True(t, f.svc.ActiveConversation().UpdatedAt.After(created))
}

func TestSendMessage_PersistsUntruncatedContent(t *testing.T) {
	var prompt string
	client := &stubLLM{results: map[string]func() (string, error){"flash": ok("ok")}}
	gw := NewModelGateway(client, testLLMConfig)
	f := newFixture(t, gw, 10, time.Minute)
	long := strings.Repeat("x", model.MaxContentChars+10)

	_, err := f.svc.SendMessage(context.Background(), long, nil)
	require.NoError(t, err)

	prompt = client.Calls()[0].prompt
	assert.Equal(t, "user: "+strings.Repeat("x", model.MaxContentChars), prompt)
	assert.Equal(t, long, f.svc.ActiveConversation().Messages[0].Content)
}

func TestSendMessage_RateLimited(t *testing.T) {
	calls := 0
	f := newFixture(t, gatewayFunc(func(ctx context.Context, h []model.ChatMessage) (string, error) {
		calls++
		return "ok", nil
	}), 2, time.Second)

	for i := 0; i < 2; i++ {
		res, err := f.svc.SendMessage(context.Background(), fmt.Sprintf("msg %d", i), nil)
		require.NoError(t, err)
		require.False(t, res.RateLimited)
		f.clock.Advance(100 * time.Millisecond)
	}
	before := f.svc.ActiveConversation().Messages

	res, err := f.svc.SendMessage(context.Background(), "third", nil)
	require.NoError(t, err)
	assert.True(t, res.RateLimited)
	assert.Nil(t, res.UserMessage)
	assert.Equal(t, 2, calls)

	after := f.svc.ActiveConversation().Messages
	require.Len(t, after, len(before)+1)
	note := after[len(after)-1]
	assert.Equal(t, model.RoleAssistant, note.Role)
	assert.Equal(t, "Rate limit exceeded. Please wait until 09:30:01 UTC before sending more messages.", note.Content)
	assert.Equal(t, 2, countRole(after, model.RoleUser))

	f.clock.Advance(time.Second)
	res, err = f.svc.SendMessage(context.Background(), "fourth", nil)
	require.NoError(t, err)
	assert.False(t, res.RateLimited)
}

func TestSendMessage_FallbackReplyReachesConversation(t *testing.T) {
	client := &stubLLM{results: map[string]func() (string, error){
		"flash": fail(&llm.StatusError{StatusCode: 503}),
		"pro":   ok("secondary answer"),
	}}
	f := newFixture(t, NewModelGateway(client, testLLMConfig), 10, time.Minute)

	res, err := f.svc.SendMessage(context.Background(), "question", nil)
	require.NoError(t, err)

	assert.Len(t, client.Calls(), 2)
	assert.Equal(t, "secondary answer", res.Reply.Content)
	msgs := f.svc.ActiveConversation().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "secondary answer", msgs[1].Content)
}

func TestSendMessage_BothTiersFailAppendsSingleError(t *testing.T) {
	client := &stubLLM{results: map[string]func() (string, error){
		"flash": fail(&llm.StatusError{StatusCode: 500}),
		"pro":   fail(&llm.StatusError{StatusCode: 500}),
	}}
	f := newFixture(t, NewModelGateway(client, testLLMConfig), 10, time.Minute)

	res, err := f.svc.SendMessage(context.Background(), "question", nil)
	require.NoError(t, err)

	assert.True(t, res.Failed)
	assert.Len(t, client.Calls(), 2)
	msgs := f.svc.ActiveConversation().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "Error: "))
	assert.False(t, f.svc.IsLoading())
}

func TestSendMessage_MissingKeyError(t *testing.T) {
	client := &stubLLM{results: map[string]func() (string, error){"flash": fail(llm.ErrMissingAPIKey)}}
	f := newFixture(t, NewModelGateway(client, testLLMConfig), 10, time.Minute)

	res, err := f.svc.SendMessage(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "Error: LLM API key not configured", res.Reply.Content)
}

func TestSendMessage_GatewayPanicStillClearsLoading(t *testing.T) {
	f := newFixture(t, gatewayFunc(func(ctx context.Context, h []model.ChatMessage) (string, error) {
		panic("boom")
	}), 10, time.Minute)

	res, err := f.svc.SendMessage(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, "Error: Failed to get response", res.Reply.Content)
	assert.False(t, f.svc.IsLoading())

	_, err = f.svc.SendMessage(context.Background(), "again", nil)
	assert.NoError(t, err, "busy flag released after panic")
}

func TestSendMessage_OrderingAndLoadingEvents(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := newFixture(t, gatewayFunc(func(ctx context.Context, h []model.ChatMessage) (string, error) {
		close(started)
		<-release
		return "done", nil
	}), 10, time.Minute)

	var mu sync.Mutex
	var events []Event
	unsubscribe := f.svc.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.svc.SendMessage(context.Background(), "hi", nil)
	}()

	<-started
	// 网关调用开始前用户消息已经可见
	msgs := f.svc.ActiveConversation().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.True(t, f.svc.IsLoading())
	assert.Nil(t, f.svc.Suggestions())

	_, err := f.svc.SendMessage(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrConversationBusy)

	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 4)
	assert.Equal(t, EventMessageAppended, events[0].Type)
	assert.Equal(t, model.RoleUser, events[0].Message.Role)
	assert.Equal(t, EventLoadingChanged, events[1].Type)
	assert.True(t, events[1].Loading)
	assert.Equal(t, EventMessageAppended, events[2].Type)
	assert.Equal(t, model.RoleAssistant, events[2].Message.Role)
	assert.Equal(t, EventLoadingChanged, events[3].Type)
	assert.False(t, events[3].Loading)

	assert.Equal(t, SuggestReplies("done"), f.svc.Suggestions())
}

func TestSendMessage_ReplyGoesToOriginatingConversation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := newFixture(t, gatewayFunc(func(ctx context.Context, h []model.ChatMessage) (string, error) {
		close(started)
		<-release
		return "late reply", nil
	}), 10, time.Minute)
	origin := f.svc.ActiveConversation()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.svc.SendMessage(context.Background(), "hi", nil)
	}()
	<-started
	other := f.svc.NewConversation("")
	close(release)
	<-done

	set := f.svc.Snapshot()
	got, _ := set.Find(origin.ID)
	assert.Len(t, got.Messages, 2)
	fresh, _ := set.Find(other.ID)
	assert.Empty(t, fresh.Messages)
	assert.Equal(t, other.ID, set.ActiveID)
}

func TestSendMessage_DeletedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := newFixture(t, gatewayFunc(func(ctx context.Context, h []model.ChatMessage) (string, error) {
		close(started)
		<-release
		return "orphan", nil
	}), 10, time.Minute)
	origin := f.svc.ActiveConversation()

	done := make(chan *SendResult, 1)
	go func() {
		res, _ := f.svc.SendMessage(context.Background(), "hi", nil)
		done <- res
	}()
	<-started
	require.True(t, f.svc.DeleteConversation(origin.ID))
	close(release)
	res := <-done

	assert.Equal(t, "orphan", res.Reply.Content)
	assertSetInvariants(t, f.svc.Snapshot())
	_, found := f.svc.Snapshot().Find(origin.ID)
	assert.False(t, found)
	assert.False(t, f.svc.IsLoading())
}

func TestSnapshot_IsImmutable(t *testing.T) {
	f := newFixture(t, echoGateway(), 10, time.Minute)
	_, err := f.svc.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)

	snap := f.svc.Snapshot()
	snap.Conversations[0].Title = "changed"
	snap.ActiveID = "other"

	_, err = f.svc.SendMessage(context.Background(), "more", nil)
	require.NoError(t, err)
	current := f.svc.ActiveConversation()
	assert.Equal(t, "hi", current.Title)
	assert.Len(t, current.Messages, 4)
	assert.Len(t, snap.Conversations[0].Messages, 2)
}

func TestService_RestoresFromPersister(t *testing.T) {
	persister := repository.NewMemoryPersister()
	clock := &testClock{now: time.Now()}
	limiter := ratelimit.New(10, time.Minute, clock)
	first := NewConversationService(context.Background(), limiter, echoGateway(), persister, WithClock(clock))
	_, err := first.SendMessage(context.Background(), "remember me", nil)
	require.NoError(t, err)
	first.NewConversation(model.ModeResearch)

	restored := NewConversationService(context.Background(), limiter, echoGateway(), persister, WithClock(clock))

	assert.Equal(t, first.Snapshot(), restored.Snapshot())
}

func TestService_RestoreRepairsActiveID(t *testing.T) {
	persister := repository.NewMemoryPersister()
	require.NoError(t, persister.Save(context.Background(), model.ConversationSet{
		Conversations: []model.Conversation{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}},
		ActiveID:      "gone",
	}))

	svc := NewConversationService(context.Background(), ratelimit.New(1, time.Second, nil), echoGateway(), persister)
	assert.Equal(t, "a", svc.Snapshot().ActiveID)
}

type failingPersister struct{}

func (failingPersister) Load(ctx context.Context) (*model.ConversationSet, error) {
	return nil, errors.New("load failed")
}

func (failingPersister) Save(ctx context.Context, set model.ConversationSet) error {
	return errors.New("save failed")
}

func TestService_PersistenceFailuresAreNotFatal(t *testing.T) {
	svc := NewConversationService(context.Background(), ratelimit.New(10, time.Minute, nil), echoGateway(), failingPersister{})
	assertSetInvariants(t, svc.Snapshot())

	res, err := svc.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", res.Reply.Content)
}

// stalledPersister 的 Save 一直阻塞到 ctx 结束。
type stalledPersister struct{ saves chan error }

func (stalledPersister) Load(ctx context.Context) (*model.ConversationSet, error) { return nil, nil }

func (p stalledPersister) Save(ctx context.Context, set model.ConversationSet) error {
	<-ctx.Done()
	p.saves <- ctx.Err()
	return ctx.Err()
}

func TestService_StalledSaveIsBounded(t *testing.T) {
	p := stalledPersister{saves: make(chan error, 8)}
	svc := NewConversationService(context.Background(), ratelimit.New(10, time.Minute, nil), echoGateway(), p,
		WithSaveTimeout(20*time.Millisecond))

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := svc.SendMessage(context.Background(), "hi", nil)
		assert.NoError(t, err)
		assert.Equal(t, "echo: hi", res.Reply.Content)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SendMessage blocked on a stalled persister")
	}
	assert.ErrorIs(t, <-p.saves, context.DeadlineExceeded)
}

func TestSuggestions_OnlyAfterAssistantMessage(t *testing.T) {
	f := newFixture(t, gatewayFunc(func(ctx context.Context, h []model.ChatMessage) (string, error) {
		return "Here is the code you asked for", nil
	}), 10, time.Minute)
	assert.Nil(t, f.svc.Suggestions())

	res, err := f.svc.SendMessage(context.Background(), "write code", nil)
	require.NoError(t, err)

	assert.Equal(t, res.Suggestions, f.svc.Suggestions())
	assert.Equal(t, "Can you explain this in more detail?", res.Suggestions[0])
}

func ids(set model.ConversationSet) []string {
	out := make([]string, 0, len(set.Conversations))
	for _, c := range set.Conversations {
		out = append(out, c.ID)
	}
	return out
}

func roles(msgs []model.Message) []model.Role {
	out := make([]model.Role, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role)
	}
	return out
}

func countRole(msgs []model.Message, role model.Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}
