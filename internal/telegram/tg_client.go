// Package telegram delivers notification events to users through the
// Telegram Bot API. Conversations with the bot are handled elsewhere; this
// package only writes.
package telegram

import (
	"log/slog"

	"supportbot/backend/internal/localization"
	"supportbot/backend/internal/models"
	"supportbot/backend/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const sendBuffer = 256

// Sender is the part of *tgbotapi.BotAPI the client needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client is the hub's sink: it receives every event and sends it to the
// addressed user's private chat.
type Client struct {
	Bot      Sender
	Messages *localization.Localizer
	Lang     string
	Send     chan notify.Event

	done chan struct{}
	log  *slog.Logger
}

var _ notify.Client = (*Client)(nil)

// NewClient creates a sink. A nil msgs uses the bundled catalog.
func NewClient(bot Sender, msgs *localization.Localizer) *Client {
	if msgs == nil {
		msgs = localization.Default()
	}
	return &Client{
		Bot:      bot,
		Messages: msgs,
		Lang:     localization.DefaultLanguage,
		Send:     make(chan notify.Event, sendBuffer),
		done:     make(chan struct{}),
		log:      slog.Default().With("component", "telegram"),
	}
}

// NewBot authorizes against the Bot API.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	slog.Info("authorized telegram bot", "account", bot.Self.UserName)
	return bot, nil
}

func (c *Client) GetUserID() int64                    { return 0 }
func (c *Client) GetSendChannel() chan<- notify.Event { return c.Send }

// Run starts the write pump.
func (c *Client) Run() {
	go c.writePump()
}

// Close stops accepting events. Queued events are still sent.
func (c *Client) Close() {
	close(c.Send)
}

// Done is closed once the write pump has drained.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) writePump() {
	defer close(c.done)

	for ev := range c.Send {
		for _, msg := range c.render(ev) {
			if _, err := c.Bot.Send(msg); err != nil {
				c.log.Warn("failed to send notification", "user", ev.UserID, "kind", ev.Kind, "err", err)
				break
			}
		}
	}
}

// render turns one event into the Bot API calls that deliver it. A video
// note cannot carry a caption, so it is followed by a separate text.
func (c *Client) render(ev notify.Event) []tgbotapi.Chattable {
	chatID := ev.UserID
	if chatID == 0 {
		return nil
	}

	switch ev.Kind {
	case notify.KindHelpAnswered:
		header := c.Messages.GetString(c.Lang, "help_answered")
		caption := header
		if ev.Text != "" {
			caption = header + "\n\n" + ev.Text
		}

		switch ev.MediaKind {
		case models.KindText, "":
			return []tgbotapi.Chattable{tgbotapi.NewMessage(chatID, caption)}

		case models.KindVoice:
			voice := tgbotapi.NewVoice(chatID, tgbotapi.FileID(ev.FileID))
			voice.Caption = caption
			return []tgbotapi.Chattable{voice}

		case models.KindVideo:
			video := tgbotapi.NewVideo(chatID, tgbotapi.FileID(ev.FileID))
			video.Caption = caption
			return []tgbotapi.Chattable{video}

		case models.KindVideoNote:
			note := tgbotapi.NewVideoNote(chatID, 0, tgbotapi.FileID(ev.FileID))
			media := c.Messages.GetString(c.Lang, "media_video_note")
			text := tgbotapi.NewMessage(chatID, c.Messages.Format(c.Lang, "help_answered_media", media))
			return []tgbotapi.Chattable{note, text}

		default:
			c.log.Warn("unhandled reply kind", "user", chatID, "media_kind", ev.MediaKind)
			return nil
		}

	case notify.KindUserBlocked:
		return []tgbotapi.Chattable{tgbotapi.NewMessage(chatID, c.Messages.GetString(c.Lang, "user_blocked"))}

	case notify.KindAchievement:
		return []tgbotapi.Chattable{tgbotapi.NewMessage(chatID, c.Messages.Format(c.Lang, "achievement", ev.Text))}

	case notify.KindSystemInfo:
		if ev.Text == "" {
			return nil
		}
		return []tgbotapi.Chattable{tgbotapi.NewMessage(chatID, ev.Text)}

	default:
		c.log.Warn("unhandled event kind", "user", chatID, "kind", ev.Kind)
		return nil
	}
}
