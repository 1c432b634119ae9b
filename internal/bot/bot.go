// Package bot is the long-poll event loop: it turns inbound updates into
// admission-machine events and renders the machine's outcomes back into chat
// messages and keyboards.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	sl "github.com/14kear/sso-prettyslog/slogpretty/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/14kear/voteGateBot/internal/entity"
	"github.com/14kear/voteGateBot/internal/services/admission"
)

const voteCallbackPrefix = "vote_poll:"

type Bot struct {
	log     *slog.Logger
	api     *tgbotapi.BotAPI
	machine *admission.Machine
	seq     *sequencer
}

func New(log *slog.Logger, api *tgbotapi.BotAPI, machine *admission.Machine) *Bot {
	b := &Bot{
		log:     log,
		api:     api,
		machine: machine,
	}
	b.seq = newSequencer(b.handleUpdate)
	return b
}

// Run polls for updates until ctx is cancelled. One user's updates are
// handled strictly in arrival order; distinct users are handled concurrently.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("bot update loop started", slog.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("bot update loop stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.seq.dispatch(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	if msg.IsCommand() && msg.Command() == "start" {
		user := entity.User{
			ID:        userID,
			Username:  msg.From.UserName,
			FirstName: msg.From.FirstName,
		}

		var deepLink *admission.DeepLinkVote
		if args := msg.CommandArguments(); args != "" {
			deepLink, _ = admission.ParseDeepLink(args)
		}

		result, err := b.machine.Start(ctx, user, deepLink)
		if err != nil {
			b.reportFailure(userID, err)
			return
		}
		b.render(userID, result)
		return
	}

	if msg.Contact != nil {
		result, err := b.machine.SubmitContact(ctx, userID, msg.Contact.PhoneNumber)
		if err != nil {
			b.reportFailure(userID, err)
			return
		}
		b.render(userID, result)
		return
	}

	state, ok, err := b.machine.CurrentState(ctx, userID)
	if err != nil {
		b.reportFailure(userID, err)
		return
	}
	if !ok {
		return
	}

	switch state {
	case admission.StateAwaitingContact:
		b.reply(userID, "Please use the 'Share phone number 📞' button below to send your contact.", nil)
	case admission.StateAwaitingCaptcha:
		result, err := b.machine.SubmitCaptcha(ctx, userID, msg.Text)
		if err != nil {
			b.reportFailure(userID, err)
			return
		}
		b.render(userID, result)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID

	switch {
	case cq.Data == checkSubscriptionCallback:
		b.answerCallback(cq.ID, "Checking...")

		result, err := b.machine.RecheckSubscription(ctx, userID)
		if err != nil {
			b.reportFailure(userID, err)
			return
		}
		b.render(userID, result)

	case strings.HasPrefix(cq.Data, voteCallbackPrefix):
		pollID, optionKey, ok := parseVoteCallback(cq.Data)
		if !ok {
			b.answerCallback(cq.ID, "Malformed vote data.")
			return
		}

		b.answerCallback(cq.ID, "")

		result, err := b.machine.SubmitChoice(ctx, userID, pollID, optionKey)
		if err != nil {
			b.reportFailure(userID, err)
			return
		}
		b.render(userID, result)
	}
}

// parseVoteCallback parses "vote_poll:<pollID>:choice:<key>".
func parseVoteCallback(data string) (int64, string, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != "vote_poll" || parts[2] != "choice" || parts[3] == "" {
		return 0, "", false
	}
	pollID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return pollID, parts[3], true
}

func (b *Bot) render(userID int64, result admission.Result) {
	switch result.Outcome {
	case admission.OutcomeSubscribeRequired:
		text := "To take part in the vote, please join the required channels:"
		for _, ch := range result.Channels {
			if ch.JoinURL == "" {
				text += "\n▪️ " + ch.Title
			}
		}
		b.reply(userID, text, subscriptionKeyboard(result.Channels, "✅ I've joined"))

	case admission.OutcomeContactRequested:
		b.reply(userID, "Please share your phone number to continue:", contactKeyboard())

	case admission.OutcomeCaptchaIssued:
		text := fmt.Sprintf("Phone number accepted.\n\nNow confirm you are not a bot — solve this:\n\n%s", result.Question)
		b.reply(userID, text, tgbotapi.NewRemoveKeyboard(false))

	case admission.OutcomeCaptchaRetry:
		b.reply(userID, fmt.Sprintf("Wrong answer. You have %d attempt(s) left, try again:", result.AttemptsLeft), nil)

	case admission.OutcomeBlocked:
		b.reply(userID, fmt.Sprintf("Too many wrong answers. You are temporarily blocked, try /start again in %s.", result.BlockedFor), tgbotapi.NewRemoveKeyboard(false))

	case admission.OutcomeRestartRequired:
		b.reply(userID, "Your session has expired. Please send /start to begin again.", nil)

	case admission.OutcomeNoActivePoll:
		b.reply(userID, "Correct! There is no active poll at the moment — thank you for your interest.", nil)

	case admission.OutcomePollClosed:
		b.reply(userID, "Sorry, this poll is closed or no longer active.", nil)

	case admission.OutcomeAlreadyVoted:
		b.reply(userID, "You have already voted in this poll. Thank you!", nil)

	case admission.OutcomeChoicePrompt:
		text := fmt.Sprintf("Poll:\n%s\n\nChoose your option:", result.Poll.Question)
		b.reply(userID, text, pollOptionsKeyboard(result.Poll))

	case admission.OutcomeVoteAccepted:
		label, _ := result.Poll.OptionLabel(result.OptionKey)
		b.reply(userID, fmt.Sprintf("✅ Your vote for %q has been recorded. Thank you!", label), nil)
	}
}

// reportFailure covers transient failures (transport, storage): the user is
// told to retry, never silently admitted or dropped.
func (b *Bot) reportFailure(userID int64, err error) {
	b.log.Error("admission event failed", slog.Int64("userID", userID), sl.Err(err))
	b.reply(userID, "Cannot verify right now, please try again in a moment.", nil)
}

func (b *Bot) reply(userID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(userID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("failed to send message", slog.Int64("userID", userID), sl.Err(err))
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("failed to answer callback", sl.Err(err))
	}
}
