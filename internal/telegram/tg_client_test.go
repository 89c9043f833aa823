package telegram

import (
	"errors"
	"testing"
	"time"

	"supportbot/backend/internal/models"
	"supportbot/backend/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func TestRender(t *testing.T) {
	c := NewClient(new(MockSender), nil)

	t.Run("text reply", func(t *testing.T) {
		out := c.render(notify.Event{UserID: 7, Kind: notify.KindHelpAnswered, MediaKind: models.KindText, Text: "breathe"})
		require.Len(t, out, 1)
		msg := out[0].(tgbotapi.MessageConfig)
		assert.Equal(t, int64(7), msg.ChatID)
		assert.Contains(t, msg.Text, "answered your help request")
		assert.Contains(t, msg.Text, "breathe")
	})

	t.Run("voice reply carries caption", func(t *testing.T) {
		out := c.render(notify.Event{UserID: 7, Kind: notify.KindHelpAnswered, MediaKind: models.KindVoice, FileID: "voice-1"})
		require.Len(t, out, 1)
		voice := out[0].(tgbotapi.VoiceConfig)
		assert.Equal(t, tgbotapi.FileID("voice-1"), voice.File)
		assert.Contains(t, voice.Caption, "answered your help request")
	})

	t.Run("video reply carries caption", func(t *testing.T) {
		out := c.render(notify.Event{UserID: 7, Kind: notify.KindHelpAnswered, MediaKind: models.KindVideo, FileID: "video-1", Text: "for you"})
		require.Len(t, out, 1)
		video := out[0].(tgbotapi.VideoConfig)
		assert.Contains(t, video.Caption, "for you")
	})

	t.Run("video note then text", func(t *testing.T) {
		out := c.render(notify.Event{UserID: 7, Kind: notify.KindHelpAnswered, MediaKind: models.KindVideoNote, FileID: "note-1"})
		require.Len(t, out, 2)
		note := out[0].(tgbotapi.VideoNoteConfig)
		assert.Equal(t, tgbotapi.FileID("note-1"), note.File)
		assert.Contains(t, out[1].(tgbotapi.MessageConfig).Text, "video note")
	})

	t.Run("block confirmation", func(t *testing.T) {
		out := c.render(notify.Event{UserID: 7, Kind: notify.KindUserBlocked})
		require.Len(t, out, 1)
		assert.Contains(t, out[0].(tgbotapi.MessageConfig).Text, "has been blocked")
	})

	t.Run("achievement", func(t *testing.T) {
		out := c.render(notify.Event{UserID: 7, Kind: notify.KindAchievement, AchievementID: "first_day", Text: "🌱 First Day"})
		require.Len(t, out, 1)
		assert.Contains(t, out[0].(tgbotapi.MessageConfig).Text, "🌱 First Day")
	})

	t.Run("nothing to render", func(t *testing.T) {
		assert.Empty(t, c.render(notify.Event{UserID: 0, Kind: notify.KindSystemInfo, Text: "x"}))
		assert.Empty(t, c.render(notify.Event{UserID: 7, Kind: notify.KindSystemInfo}))
		assert.Empty(t, c.render(notify.Event{UserID: 7, Kind: "bogus"}))
		assert.Empty(t, c.render(notify.Event{UserID: 7, Kind: notify.KindHelpAnswered, MediaKind: "sticker"}))
	})
}

func TestWritePump_SendsAndSurvivesFailures(t *testing.T) {
	bot := new(MockSender)
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		m, ok := c.(tgbotapi.MessageConfig)
		return ok && m.ChatID == 1
	})).Return(errors.New("bot was blocked by the user")).Once()
	bot.On("Send", mock.Anything).Return(nil)

	c := NewClient(bot, nil)
	c.Run()
	c.Send <- notify.Event{UserID: 1, Kind: notify.KindSystemInfo, Text: "lost"}
	c.Send <- notify.Event{UserID: 2, Kind: notify.KindSystemInfo, Text: "delivered"}
	c.Close()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("write pump did not drain")
	}
	bot.AssertNumberOfCalls(t, "Send", 2)
}
