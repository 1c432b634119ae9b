package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/14kear/voteGateBot/internal/entity"
)

const checkSubscriptionCallback = "check_subscription"

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("Share phone number 📞"),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// subscriptionKeyboard renders a URL button per resolvable channel and the
// re-check button below. Channels without a join link are listed in the
// message text instead.
func subscriptionKeyboard(channels []entity.RequiredChannel, checkText string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ch := range channels {
		if ch.JoinURL == "" {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("➡️ "+ch.Title, ch.JoinURL),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(checkText, checkSubscriptionCallback),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func pollOptionsKeyboard(poll entity.Poll) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, opt := range poll.Options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Label, voteCallbackData(poll.ID, opt.Key)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func voteCallbackData(pollID int64, optionKey string) string {
	return fmt.Sprintf("vote_poll:%d:choice:%s", pollID, optionKey)
}
