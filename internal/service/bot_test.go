package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neirobot/bot-server-go/internal/model"
)

type stubSender struct {
	sent []string
	err  error
}

func (s *stubSender) Send(ctx context.Context, chatID int64, text string) error {
	s.sent = append(s.sent, text)
	return s.err
}

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return g.text, g.err
}

// stubDeduper mirrors the SETNX claim/release behavior in memory.
type stubDeduper struct {
	claimed map[int64]bool
}

func (d *stubDeduper) Seen(ctx context.Context, updateID int64) bool {
	if d.claimed == nil {
		d.claimed = make(map[int64]bool)
	}
	if d.claimed[updateID] {
		return true
	}
	d.claimed[updateID] = true
	return false
}

func (d *stubDeduper) Release(ctx context.Context, updateID int64) {
	delete(d.claimed, updateID)
}

type stubFlooder struct {
	allowed bool
}

func (f *stubFlooder) Allow(ctx context.Context, chatID int64) (bool, time.Time) {
	return f.allowed, time.Time{}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text     string
		expected Command
	}{
		{"/start", CommandStart},
		{"/help", CommandHelp},
		{"/premium", CommandPremium},
		{"/stats", CommandStats},
		{"  /start  ", CommandStart},
		{"/unknown", CommandGenerate},
		{"hello there", CommandGenerate},
		{"/starting", CommandGenerate},
		{"", CommandGenerate},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseCommand(tc.text))
		})
	}
}

func newTestBot(userRepo *mockUserRepo, requestRepo *mockRequestRepo, gen *stubGenerator, sender *stubSender, now time.Time) *BotService {
	bot := NewBotService(
		NewUserService(userRepo, 2),
		NewRequestService(requestRepo),
		gen,
		sender,
		&stubDeduper{},
		&stubFlooder{allowed: true},
	)
	bot.now = func() time.Time { return now }
	return bot
}

func TestBotService_Handle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	var updateSeq int64
	inbound := func(text string) Inbound {
		updateSeq++
		return Inbound{UpdateID: updateSeq, ChatID: 500, UserID: 100, Username: "alice", FirstName: "Alice", Text: text}
	}

	t.Run("duplicate update is dropped", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		sender := &stubSender{}
		bot := newTestBot(userRepo, new(mockRequestRepo), &stubGenerator{}, sender, now)

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(0, 2, now), nil)

		in := inbound("/help")
		require.NoError(t, bot.Handle(ctx, in))
		require.NoError(t, bot.Handle(ctx, in))

		assert.Len(t, sender.sent, 1)
		userRepo.AssertNumberOfCalls(t, "GetOrCreate", 1)
	})

	t.Run("failed update is released for redelivery", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		sender := &stubSender{}
		bot := newTestBot(userRepo, new(mockRequestRepo), &stubGenerator{}, sender, now)

		// Storage flakes on the first delivery and recovers for the retry.
		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(nil, errors.New("connection refused")).Once()
		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(0, 2, now), nil).Once()

		in := inbound("/help")
		require.Error(t, bot.Handle(ctx, in))
		require.NoError(t, bot.Handle(ctx, in))

		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0], "Help")
		userRepo.AssertNumberOfCalls(t, "GetOrCreate", 2)
	})

	t.Run("start greets with status", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		sender := &stubSender{}
		bot := newTestBot(userRepo, new(mockRequestRepo), &stubGenerator{}, sender, now)

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(1, 2, now), nil)

		err := bot.Handle(ctx, inbound("/start"))
		require.NoError(t, err)
		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0], "Hi, Alice")
		assert.Contains(t, sender.sent[0], "Free (1/2 today)")
	})

	t.Run("help and premium reply with static text", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		sender := &stubSender{}
		bot := newTestBot(userRepo, new(mockRequestRepo), &stubGenerator{}, sender, now)

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(0, 2, now), nil)

		require.NoError(t, bot.Handle(ctx, inbound("/help")))
		require.NoError(t, bot.Handle(ctx, inbound("/premium")))
		require.Len(t, sender.sent, 2)
		assert.Contains(t, sender.sent[0], "Help")
		assert.Contains(t, sender.sent[1], "Premium")
	})

	t.Run("stats shows totals and premium status", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		requestRepo := new(mockRequestRepo)
		sender := &stubSender{}
		bot := newTestBot(userRepo, requestRepo, &stubGenerator{}, sender, now)

		user := premiumUser(now.Add(24 * time.Hour))
		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(user, nil)
		requestRepo.On("CountByUser", ctx, int64(100)).Return(42, nil)

		err := bot.Handle(ctx, inbound("/stats"))
		require.NoError(t, err)
		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0], "Premium")
		assert.Contains(t, sender.sent[0], "42")
		assert.Contains(t, sender.sent[0], "Unlimited")
	})

	t.Run("generation success charges and answers", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		requestRepo := new(mockRequestRepo)
		gen := &stubGenerator{text: "the answer"}
		sender := &stubSender{}
		bot := newTestBot(userRepo, requestRepo, gen, sender, now)

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(0, 2, now), nil)
		userRepo.On("ConsumeFreeRequest", ctx, int64(100)).Return(freeUser(1, 2, now), nil)

		pending := &model.Request{ID: 7, UserID: 100, Status: model.RequestStatusPending}
		requestRepo.On("Create", ctx, model.CreateRequestParams{UserID: 100, RequestText: "hello"}).Return(pending, nil)
		requestRepo.On("Close", ctx, int64(7), "the answer", model.RequestStatusCompleted).
			Return(&model.Request{ID: 7, Status: model.RequestStatusCompleted}, nil)

		err := bot.Handle(ctx, inbound("hello"))
		require.NoError(t, err)

		require.Len(t, sender.sent, 2)
		assert.Contains(t, sender.sent[0], "Generating")
		assert.Contains(t, sender.sent[1], "the answer")
		assert.Equal(t, 1, gen.calls)
		userRepo.AssertExpectations(t)
		requestRepo.AssertExpectations(t)
	})

	t.Run("generation failure still charges", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		requestRepo := new(mockRequestRepo)
		gen := &stubGenerator{err: errors.New("upstream status 500")}
		sender := &stubSender{}
		bot := newTestBot(userRepo, requestRepo, gen, sender, now)

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(0, 2, now), nil)
		userRepo.On("ConsumeFreeRequest", ctx, int64(100)).Return(freeUser(1, 2, now), nil)

		pending := &model.Request{ID: 7, UserID: 100, Status: model.RequestStatusPending}
		requestRepo.On("Create", ctx, mock.Anything).Return(pending, nil)
		requestRepo.On("Close", ctx, int64(7), mock.AnythingOfType("string"), model.RequestStatusFailed).
			Return(&model.Request{ID: 7, Status: model.RequestStatusFailed}, nil)

		err := bot.Handle(ctx, inbound("hello"))
		require.NoError(t, err)

		require.Len(t, sender.sent, 2)
		assert.Contains(t, sender.sent[1], "Generation failed")
		userRepo.AssertCalled(t, "ConsumeFreeRequest", ctx, int64(100))
		requestRepo.AssertExpectations(t)
	})

	t.Run("exhausted quota denies without a ledger entry", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		requestRepo := new(mockRequestRepo)
		sender := &stubSender{}
		bot := newTestBot(userRepo, requestRepo, &stubGenerator{}, sender, now)

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(2, 2, now), nil)

		err := bot.Handle(ctx, inbound("hello"))
		require.NoError(t, err)

		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0], "Daily limit reached")
		requestRepo.AssertNotCalled(t, "Create")
		userRepo.AssertNotCalled(t, "ConsumeFreeRequest")
	})

	t.Run("exhausted quota still answers commands", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		sender := &stubSender{}
		bot := newTestBot(userRepo, new(mockRequestRepo), &stubGenerator{}, sender, now)

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(2, 2, now), nil)

		err := bot.Handle(ctx, inbound("/help"))
		require.NoError(t, err)
		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0], "Help")
	})

	t.Run("flood limit slows the chat down", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		requestRepo := new(mockRequestRepo)
		sender := &stubSender{}
		bot := newTestBot(userRepo, requestRepo, &stubGenerator{}, sender, now)
		bot.flood = &stubFlooder{allowed: false}

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(0, 2, now), nil)

		err := bot.Handle(ctx, inbound("hello"))
		require.NoError(t, err)

		require.Len(t, sender.sent, 1)
		assert.Contains(t, strings.ToLower(sender.sent[0]), "slow down")
		requestRepo.AssertNotCalled(t, "Create")
	})

	t.Run("flood verdict comes before the quota verdict", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		sender := &stubSender{}
		bot := newTestBot(userRepo, new(mockRequestRepo), &stubGenerator{}, sender, now)
		bot.flood = &stubFlooder{allowed: false}

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(2, 2, now), nil)

		err := bot.Handle(ctx, inbound("hello"))
		require.NoError(t, err)

		require.Len(t, sender.sent, 1)
		assert.Contains(t, strings.ToLower(sender.sent[0]), "slow down")
		assert.NotContains(t, sender.sent[0], "Daily limit")
	})

	t.Run("delivery failures do not fail the unit of work", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		sender := &stubSender{err: errors.New("network down")}
		bot := newTestBot(userRepo, new(mockRequestRepo), &stubGenerator{}, sender, now)

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(freeUser(0, 2, now), nil)

		err := bot.Handle(ctx, inbound("/help"))
		require.NoError(t, err)
	})

	t.Run("storage errors propagate", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		bot := newTestBot(userRepo, new(mockRequestRepo), &stubGenerator{}, &stubSender{}, now)

		userRepo.On("GetOrCreate", ctx, mock.Anything).Return(nil, errors.New("connection refused"))

		err := bot.Handle(ctx, inbound("hello"))
		require.Error(t, err)
	})
}
