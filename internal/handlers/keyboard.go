package handlers

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const callbackPrefix = "ms"

const (
	actionGenerate   = "generate"
	actionRegenerate = "regenerate"
	actionBack       = "back"
	actionReset      = "reset"
)

func cb(ownerID int64, action string) string {
	return callbackPrefix + ":" + strconv.FormatInt(ownerID, 10) + ":" + action
}

func parseCallback(data string) (ownerID int64, action string, ok bool) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return 0, "", false
	}
	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return ownerID, parts[2], true
}

func reviewKeyboard(ownerID int64, labels buttonLabels) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(labels.generate, cb(ownerID, actionGenerate)),
			tgbotapi.NewInlineKeyboardButtonData(labels.reset, cb(ownerID, actionReset)),
		),
	)
}

func completeKeyboard(ownerID int64, labels buttonLabels, withBack bool) tgbotapi.InlineKeyboardMarkup {
	row := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(labels.regenerate, cb(ownerID, actionRegenerate)),
	)
	if withBack {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(labels.back, cb(ownerID, actionBack)))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData(labels.reset, cb(ownerID, actionReset)))
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

type buttonLabels struct {
	generate   string
	regenerate string
	back       string
	reset      string
}

// HandleCallback runs a button press as if the owner had typed the command.
func (h *Handler) HandleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.Message.Chat == nil || q.From == nil {
		return nil
	}

	ownerID, action, ok := parseCallback(q.Data)
	if !ok {
		return nil
	}
	if ownerID != q.From.ID {
		return h.tg.AnswerCallback(q.ID, h.msg.NotYourMenu, true)
	}
	_ = h.tg.AnswerCallback(q.ID, "", false)

	chatID := q.Message.Chat.ID
	st := h.studioFor(chatID, ownerID)

	switch action {
	case actionGenerate:
		return h.generate(ctx, chatID, ownerID, st, "")
	case actionRegenerate:
		return h.regenerate(ctx, chatID, ownerID, st)
	case actionBack:
		return h.back(chatID, ownerID, st)
	case actionReset:
		return h.reset(chatID, st)
	}
	return nil
}
