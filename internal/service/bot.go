package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/neirobot/bot-server-go/internal/audit"
	apperrors "github.com/neirobot/bot-server-go/internal/errors"
	"github.com/neirobot/bot-server-go/internal/model"
)

// Command is one of the fixed inputs the router recognizes. Anything else
// is a generation request.
type Command string

const (
	CommandStart    Command = "/start"
	CommandHelp     Command = "/help"
	CommandPremium  Command = "/premium"
	CommandStats    Command = "/stats"
	CommandGenerate Command = "" // fallthrough
)

// ParseCommand maps inbound text to a recognized command. Unrecognized
// slash-prefixed text is treated as a generation request, same as plain text.
func ParseCommand(text string) Command {
	switch strings.TrimSpace(text) {
	case "/start":
		return CommandStart
	case "/help":
		return CommandHelp
	case "/premium":
		return CommandPremium
	case "/stats":
		return CommandStats
	default:
		return CommandGenerate
	}
}

// Inbound is one normalized webhook message. Each one is handled as an
// independent unit of work; no session state survives between messages.
type Inbound struct {
	UpdateID  int64
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Text      string
}

// Deduper suppresses duplicate webhook deliveries. Release gives a claimed
// update back after a processing failure so the redelivery is handled
// instead of dropped.
type Deduper interface {
	Seen(ctx context.Context, updateID int64) bool
	Release(ctx context.Context, updateID int64)
}

// Flooder shapes per-chat traffic ahead of quota evaluation.
type Flooder interface {
	Allow(ctx context.Context, chatID int64) (bool, time.Time)
}

// BotService is the command router: it resolves the account, runs the quota
// policy, and drives the ledger/generation/delivery flow for one message.
type BotService struct {
	users    *UserService
	requests *RequestService

	generator Generator
	sender    Sender
	dedup     Deduper
	flood     Flooder

	now func() time.Time
}

func NewBotService(
	users *UserService,
	requests *RequestService,
	generator Generator,
	sender Sender,
	dedup Deduper,
	flood Flooder,
) *BotService {
	return &BotService{
		users:     users,
		requests:  requests,
		generator: generator,
		sender:    sender,
		dedup:     dedup,
		flood:     flood,
		now:       time.Now,
	}
}

// Handle processes one inbound message end to end. Generation failures are
// absorbed here (ledger marked failed, user notified); only storage-level
// failures propagate to the transport boundary.
func (s *BotService) Handle(ctx context.Context, in Inbound) error {
	if s.dedup != nil && s.dedup.Seen(ctx, in.UpdateID) {
		log.Debug().Int64("updateId", in.UpdateID).Msg("duplicate update dropped")
		return nil
	}

	if err := s.dispatch(ctx, in); err != nil {
		// The failure was ours, not a repeat delivery: give the update back
		// so the non-2xx ack makes Telegram's redelivery processable.
		if s.dedup != nil {
			s.dedup.Release(ctx, in.UpdateID)
		}
		return err
	}
	return nil
}

func (s *BotService) dispatch(ctx context.Context, in Inbound) error {
	user, err := s.users.GetOrCreate(ctx, in.UserID, in.Username, in.FirstName)
	if err != nil {
		return err
	}

	now := s.now()
	user, allowed, err := s.users.EvaluateQuota(ctx, user, now)
	if err != nil {
		return err
	}

	switch ParseCommand(in.Text) {
	case CommandStart:
		s.reply(ctx, in.ChatID, s.startText(user, in.FirstName))
		return nil
	case CommandHelp:
		s.reply(ctx, in.ChatID, helpText)
		return nil
	case CommandPremium:
		s.reply(ctx, in.ChatID, premiumText)
		return nil
	case CommandStats:
		return s.handleStats(ctx, in.ChatID, user)
	default:
		return s.handleGenerate(ctx, in, user, allowed)
	}
}

func (s *BotService) handleStats(ctx context.Context, chatID int64, user *model.User) error {
	total, err := s.requests.CountForUser(ctx, user.TelegramID)
	if err != nil {
		return err
	}

	var quotaLine string
	if user.IsPremium {
		quotaLine = "Unlimited"
	} else {
		quotaLine = fmt.Sprintf("Today: %d/%d", user.FreeRequestsUsed, user.FreeRequestsLimit)
	}

	s.reply(ctx, chatID, fmt.Sprintf(
		"📊 Stats\n\nStatus: %s\nTotal requests: %d\n%s",
		statusLabel(user), total, quotaLine,
	))
	return nil
}

func (s *BotService) handleGenerate(ctx context.Context, in Inbound, user *model.User, allowed bool) error {
	// Traffic shaping comes before the quota verdict; a flooded chat gets a
	// slow-down nudge, never a charged or denied request.
	if s.flood != nil {
		if ok, _ := s.flood.Allow(ctx, in.ChatID); !ok {
			s.reply(ctx, in.ChatID, "🐢 Too many messages, please slow down a little.")
			return nil
		}
	}

	if !allowed {
		audit.Log(ctx, audit.Event{
			Type:   audit.EventQuotaDenied,
			UserID: user.TelegramID,
		})
		s.reply(ctx, in.ChatID,
			"❌ Daily limit reached\n\nYour free quota resets tomorrow, or upgrade with /premium")
		return nil
	}

	s.reply(ctx, in.ChatID, "⏳ Generating...")

	entry, err := s.requests.Open(ctx, user.TelegramID, in.Text)
	if err != nil {
		return err
	}

	responseText, genErr := s.generator.Generate(ctx, in.Text)

	// The attempt is over either way; the ledger entry must leave pending
	// before the user is charged or notified.
	if genErr != nil {
		log.Warn().Err(genErr).Int64("requestId", entry.ID).Msg("generation failed")
		if _, err := s.requests.Close(ctx, entry.ID, genErr.Error(), model.RequestStatusFailed); err != nil {
			return err
		}
	} else {
		if _, err := s.requests.Close(ctx, entry.ID, responseText, model.RequestStatusCompleted); err != nil {
			return err
		}
	}

	// Charge on attempt, success or not.
	if _, err := s.users.Consume(ctx, user); err != nil {
		return err
	}

	if genErr != nil {
		s.reply(ctx, in.ChatID, "❌ Generation failed. Please try again later.")
		return nil
	}

	s.reply(ctx, in.ChatID, "✅ Answer:\n\n"+responseText)
	return nil
}

// reply delivers best-effort: a delivery failure is logged, never fatal for
// the unit of work.
func (s *BotService) reply(ctx context.Context, chatID int64, text string) {
	if err := s.sender.Send(ctx, chatID, text); err != nil {
		code := apperrors.GetCode(err)
		log.Warn().Err(err).Int64("chatId", chatID).Str("code", string(code)).Msg("reply not delivered")
	}
}

const helpText = "ℹ️ Help\n\n" +
	"🆓 Free: 2 requests per day\n" +
	"👑 Premium: unlimited\n\n" +
	"Send me any text and I will answer!\n\n" +
	"Commands:\n/start\n/premium\n/stats"

const premiumText = "👑 Premium\n\n" +
	"✅ Unlimited requests\n" +
	"✅ Priority processing\n\n" +
	"💳 Payment is manual for now: transfer the subscription fee and " +
	"message support with your Telegram username to activate."

func (s *BotService) startText(user *model.User, firstName string) string {
	name := firstName
	if name == "" && user.FirstName != nil {
		name = *user.FirstName
	}
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"👋 Hi, %s!\n\nI am Neiro Bot, your AI assistant.\n\n📊 Status: %s\n\nCommands:\n/help\n/premium\n/stats",
		name, statusLabel(user),
	)
}

func statusLabel(user *model.User) string {
	if user.IsPremium {
		return "🔥 Premium"
	}
	return fmt.Sprintf("🆓 Free (%d/%d today)", user.FreeRequestsUsed, user.FreeRequestsLimit)
}
