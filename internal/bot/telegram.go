package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/italolelis/torrent_finder/internal/logctx"
)

// Handler consumes inbound chat events. Satisfied by Engine; narrowed to an
// interface so the transport stays testable without a feed or backend.
type Handler interface {
	HandleText(ctx context.Context, chatID int64, text string) error
	HandleCallback(ctx context.Context, chatID int64, data string) error
}

// TelegramBot bridges the Telegram long-polling API and the conversation
// engine. It is also the outbound channel (Send/Edit) and the completion
// notifier, since all three speak to the same chat API.
type TelegramBot struct {
	api           *tgbotapi.BotAPI
	handler       Handler
	allowedChatID int64
}

// NewTelegramBot authenticates against the Telegram API. When allowedChatID
// is non-zero, events from every other chat are dropped.
func NewTelegramBot(token string, allowedChatID int64) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authenticating telegram bot: %w", err)
	}

	return &TelegramBot{api: api, allowedChatID: allowedChatID}, nil
}

// SetHandler wires the event consumer. Must be called before Run.
func (b *TelegramBot) SetHandler(h Handler) {
	b.handler = h
}

// Run consumes updates until the context is cancelled. Each update is handled
// on its own goroutine; per-chat ordering is enforced downstream by the
// session lock, not here.
func (b *TelegramBot) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)
	logger.Info("telegram bot started", "username", b.api.Self.UserName)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()

			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			go b.dispatchUpdate(ctx, update)
		}
	}
}

func (b *TelegramBot) dispatchUpdate(ctx context.Context, update tgbotapi.Update) {
	logger := logctx.LoggerFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling update", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery

		// Stop the client-side spinner regardless of what happens next.
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			logger.Warn("answering callback failed", "err", err)
		}

		if cq.Message == nil {
			return
		}

		chatID := cq.Message.Chat.ID
		if !b.allowed(chatID) {
			logger.Warn("ignoring callback from unexpected chat", "chat_id", chatID)

			return
		}

		if err := b.handler.HandleCallback(ctx, chatID, cq.Data); err != nil {
			logger.Error("callback handling failed", "chat_id", chatID, "err", err)
		}
	case update.Message != nil && update.Message.Text != "":
		chatID := update.Message.Chat.ID
		if !b.allowed(chatID) {
			logger.Warn("ignoring message from unexpected chat", "chat_id", chatID)

			return
		}

		if err := b.handler.HandleText(ctx, chatID, update.Message.Text); err != nil {
			logger.Error("message handling failed", "chat_id", chatID, "err", err)
		}
	}
}

func (b *TelegramBot) allowed(chatID int64) bool {
	return b.allowedChatID == 0 || chatID == b.allowedChatID
}

// Send implements Outbound.
func (b *TelegramBot) Send(ctx context.Context, chatID int64, msg Message) (int, error) {
	out := tgbotapi.NewMessage(chatID, msg.Text)
	if msg.Markdown {
		out.ParseMode = tgbotapi.ModeMarkdown
	}

	if len(msg.Buttons) > 0 {
		out.ReplyMarkup = inlineKeyboard(msg.Buttons)
	}

	sent, err := b.api.Send(out)
	if err != nil {
		return 0, fmt.Errorf("sending message to chat %d: %w", chatID, err)
	}

	return sent.MessageID, nil
}

// Edit implements Outbound, rewriting an earlier message in place.
func (b *TelegramBot) Edit(ctx context.Context, chatID int64, messageID int, msg Message) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
	if msg.Markdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}

	if len(msg.Buttons) > 0 {
		markup := inlineKeyboard(msg.Buttons)
		edit.ReplyMarkup = &markup
	}

	if _, err := b.api.Request(edit); err != nil {
		return fmt.Errorf("editing message %d in chat %d: %w", messageID, chatID, err)
	}

	return nil
}

// Notify implements the completion notifier contract used by the watcher.
func (b *TelegramBot) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := b.Send(ctx, chatID, Message{Text: text})

	return err
}

func inlineKeyboard(buttons [][]Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))

	for _, row := range buttons {
		cells := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			cells = append(cells, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}

		rows = append(rows, cells)
	}

	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
