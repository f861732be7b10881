package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"marketing-studio/internal/locale"
	"marketing-studio/internal/mediagroup"
	"marketing-studio/internal/session"
	"marketing-studio/internal/studio"
	"marketing-studio/internal/telegram"
	"marketing-studio/internal/workflow"
)

// Messenger is the part of the Telegram client the handler talks to.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTyping(chatID int64)
	SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	AnswerCallback(callbackID, text string, alert bool) error
	SendImage(chatID int64, imageURL string, caption string) error
	DownloadFile(ctx context.Context, fileID string) (studio.ImagePayload, error)
}

type Options struct {
	Telegram Messenger
	Sessions *session.Store
	Messages locale.Messages
	Logger   *slog.Logger
}

type Handler struct {
	tg         Messenger
	sessions   *session.Store
	msg        locale.Messages
	buttons    buttonLabels
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:       opts.Telegram,
		sessions: opts.Sessions,
		msg:      opts.Messages,
		buttons: buttonLabels{
			generate:   opts.Messages.ButtonGenerate,
			regenerate: opts.Messages.ButtonRegenerate,
			back:       opts.Messages.ButtonBack,
			reset:      opts.Messages.ButtonReset,
		},
		logger: logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.HandleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	st := h.studioFor(chatID, msg.From.ID)

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, msg.From.ID, st, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, st, msg)
	}

	if msg.Text != "" {
		return h.handleText(chatID, st, msg.Text)
	}

	return nil
}

func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	st := h.studioFor(group.ChatID, group.UserID)
	if err := h.applyPhotos(ctx, group.ChatID, st, group.Caption, group.FileIDs); err != nil {
		h.logger.Error("media group processing failed", "err", err)
	}
}

func (h *Handler) studioFor(chatID, userID int64) *session.Studio {
	return h.sessions.GetOrCreate(fmt.Sprintf("tg:%d:%d", chatID, userID))
}

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, st *session.Studio, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID, h.msg.Start)
	case "help":
		return h.tg.SendText(chatID, h.msg.Help)
	case "fusion":
		st.SetMode(session.ModeFusion)
		return h.tg.SendText(chatID, h.msg.ModeFusion)
	case "direct":
		st.SetMode(session.ModeDirect)
		return h.tg.SendText(chatID, h.msg.ModeDirect)
	case "status":
		return h.tg.SendText(chatID, h.status(st))
	case "analyze":
		return h.analyze(ctx, chatID, userID, st)
	case "generate":
		return h.generate(ctx, chatID, userID, st, strings.TrimSpace(msg.CommandArguments()))
	case "regenerate":
		return h.regenerate(ctx, chatID, userID, st)
	case "back":
		return h.back(chatID, userID, st)
	case "reset":
		return h.reset(chatID, st)
	default:
		return h.tg.SendText(chatID, h.msg.UnknownCommand)
	}
}

func (h *Handler) back(chatID, userID int64, st *session.Studio) error {
	if st.Mode() != session.ModeFusion {
		return h.tg.SendText(chatID, h.msg.NotAllowed)
	}
	if err := st.Fusion.Back(); err != nil {
		return h.sendTransitionError(chatID, st.Fusion.State(), err)
	}
	if err := h.tg.SendText(chatID, h.msg.BackDone); err != nil {
		return err
	}
	return h.sendReview(chatID, userID, st.Fusion.Snapshot().Analysis)
}

func (h *Handler) reset(chatID int64, st *session.Studio) error {
	if st.Mode() == session.ModeDirect {
		st.Direct.Reset()
	} else {
		st.Fusion.Reset()
	}
	return h.tg.SendText(chatID, h.msg.ResetDone)
}

func (h *Handler) handleText(chatID int64, st *session.Studio, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if st.Mode() != session.ModeDirect {
		return h.tg.SendText(chatID, h.msg.ModeFusion)
	}

	if err := st.Direct.SetStyle(text); err != nil {
		return h.sendTransitionError(chatID, st.Direct.State(), err)
	}
	return h.tg.SendText(chatID, h.msg.DirectStyleSaved)
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, st *session.Studio, msg *tgbotapi.Message) error {
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       msg.From.ID,
			MessageID:    msg.MessageID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
		})
		return nil
	}

	return h.applyPhotos(ctx, chatID, st, msg.Caption, []string{fileID})
}

// applyPhotos downloads the photos and slots them into the active flow. In
// fusion mode an album of two sets reference then product.
func (h *Handler) applyPhotos(ctx context.Context, chatID int64, st *session.Studio, caption string, fileIDs []string) error {
	if len(fileIDs) > 2 || (len(fileIDs) == 2 && st.Mode() == session.ModeDirect) {
		return h.tg.SendText(chatID, h.msg.AlbumTooLarge)
	}

	h.tg.SendTyping(chatID)

	images := make([]studio.ImagePayload, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		i, fileID := i, fileID
		eg.Go(func() error {
			img, err := h.tg.DownloadFile(egCtx, fileID)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, h.msg.DownloadFailed)
	}

	if st.Mode() == session.ModeDirect {
		return h.applyDirectPhoto(chatID, st, caption, images[0])
	}
	return h.applyFusionPhotos(chatID, st, caption, images)
}

func (h *Handler) applyFusionPhotos(chatID int64, st *session.Studio, caption string, images []studio.ImagePayload) error {
	f := st.Fusion

	if len(images) == 2 {
		if err := f.SetReference(images[0]); err != nil {
			return h.sendTransitionError(chatID, f.State(), err)
		}
		if err := f.SetProduct(images[1]); err != nil {
			return h.sendTransitionError(chatID, f.State(), err)
		}
		return h.tg.SendText(chatID, h.msg.BothImagesSaved)
	}

	snap := f.Snapshot()
	asReference := isReferenceCaption(caption) || (!snap.HasReference && !isProductCaption(caption))

	if asReference {
		if err := f.SetReference(images[0]); err != nil {
			return h.sendTransitionError(chatID, snap.State, err)
		}
		if snap.HasProduct {
			return h.tg.SendText(chatID, h.msg.BothImagesSaved)
		}
		return h.tg.SendText(chatID, h.msg.ReferenceSaved)
	}

	if err := f.SetProduct(images[0]); err != nil {
		return h.sendTransitionError(chatID, snap.State, err)
	}
	if snap.HasReference {
		return h.tg.SendText(chatID, h.msg.BothImagesSaved)
	}
	return h.tg.SendText(chatID, h.msg.ProductSaved)
}

func (h *Handler) applyDirectPhoto(chatID int64, st *session.Studio, caption string, img studio.ImagePayload) error {
	d := st.Direct
	if err := d.SetProduct(img); err != nil {
		return h.sendTransitionError(chatID, d.State(), err)
	}
	if caption = strings.TrimSpace(caption); caption != "" {
		if err := d.SetStyle(caption); err != nil {
			return h.sendTransitionError(chatID, d.State(), err)
		}
		return h.tg.SendText(chatID, h.msg.DirectStyleSaved)
	}
	return h.tg.SendText(chatID, h.msg.DirectProduct)
}

func (h *Handler) analyze(ctx context.Context, chatID, userID int64, st *session.Studio) error {
	if st.Mode() != session.ModeFusion {
		return h.tg.SendText(chatID, h.msg.NotAllowed)
	}

	snap := st.Fusion.Snapshot()
	if snap.State != workflow.StateUpload {
		return h.sendTransitionError(chatID, snap.State, workflow.ErrInvalidTransition)
	}
	if !snap.HasReference || !snap.HasProduct {
		return h.tg.SendText(chatID, h.msg.NeedBothImages)
	}

	_ = h.tg.SendText(chatID, h.msg.Analyzing)
	h.tg.SendTyping(chatID)

	if err := st.Fusion.Analyze(ctx); err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) || errors.Is(err, workflow.ErrSuperseded) {
			return h.sendTransitionError(chatID, snap.State, err)
		}
		return h.tg.SendText(chatID, h.msg.AnalysisFailed+"\n"+h.userError(err))
	}

	return h.sendReview(chatID, userID, st.Fusion.Snapshot().Analysis)
}

func (h *Handler) generate(ctx context.Context, chatID, userID int64, st *session.Studio, custom string) error {
	if st.Mode() == session.ModeDirect {
		d := st.Direct
		if custom != "" {
			if err := d.SetStyle(custom); err != nil {
				return h.sendTransitionError(chatID, d.State(), err)
			}
		}
		snap := d.Snapshot()
		if snap.State != workflow.StateUpload || !snap.HasProduct {
			return h.sendTransitionError(chatID, snap.State, workflow.ErrInvalidTransition)
		}
		if strings.TrimSpace(snap.Style) == "" {
			return h.tg.SendText(chatID, h.msg.DirectNeedsStyle)
		}

		_ = h.tg.SendText(chatID, h.msg.Generating)
		if err := d.Generate(ctx); err != nil {
			return h.sendGenerateError(chatID, snap.State, err)
		}
		return h.sendOutcome(chatID, userID, d.Snapshot().Outcome, false)
	}

	f := st.Fusion
	state := f.State()
	if state != workflow.StateReview {
		return h.sendTransitionError(chatID, state, workflow.ErrInvalidTransition)
	}
	_ = h.tg.SendText(chatID, h.msg.Generating)
	if err := f.Generate(ctx, custom); err != nil {
		return h.sendGenerateError(chatID, state, err)
	}
	return h.sendOutcome(chatID, userID, f.Snapshot().Outcome, true)
}

func (h *Handler) regenerate(ctx context.Context, chatID, userID int64, st *session.Studio) error {
	if st.Mode() == session.ModeDirect {
		snap := st.Direct.Snapshot()
		if snap.State != workflow.StateComplete || snap.Regenerating {
			return h.sendTransitionError(chatID, busyState(snap.State, snap.Regenerating), workflow.ErrInvalidTransition)
		}
		_ = h.tg.SendText(chatID, h.msg.Regenerating)
		if err := st.Direct.Regenerate(ctx); err != nil {
			return h.sendGenerateError(chatID, snap.State, err)
		}
		return h.sendOutcome(chatID, userID, st.Direct.Snapshot().Outcome, false)
	}

	snap := st.Fusion.Snapshot()
	if snap.State != workflow.StateComplete || snap.Regenerating {
		return h.sendTransitionError(chatID, busyState(snap.State, snap.Regenerating), workflow.ErrInvalidTransition)
	}
	_ = h.tg.SendText(chatID, h.msg.Regenerating)
	if err := st.Fusion.Regenerate(ctx); err != nil {
		return h.sendGenerateError(chatID, snap.State, err)
	}
	return h.sendOutcome(chatID, userID, st.Fusion.Snapshot().Outcome, true)
}

// busyState reports a running regeneration as generating.
func busyState(state workflow.State, regenerating bool) workflow.State {
	if regenerating {
		return workflow.StateGenerating
	}
	return state
}

func (h *Handler) sendReview(chatID, userID int64, result *studio.FusionResult) error {
	if result == nil {
		return h.tg.SendText(chatID, h.msg.NotAllowed)
	}
	_, err := h.tg.SendTextWithKeyboard(chatID, RenderReview(h.msg, result), reviewKeyboard(userID, h.buttons))
	return err
}

func (h *Handler) sendOutcome(chatID, userID int64, outcome *studio.GenerationOutcome, withBack bool) error {
	if outcome == nil {
		return h.tg.SendText(chatID, h.msg.NotAllowed)
	}
	if err := h.tg.SendImage(chatID, outcome.ImageURL, h.msg.Complete); err != nil {
		return err
	}
	text := h.msg.PromptHeader + ":\n" + outcome.Prompt
	_, err := h.tg.SendTextWithKeyboard(chatID, text, completeKeyboard(userID, h.buttons, withBack))
	return err
}

func (h *Handler) sendGenerateError(chatID int64, state workflow.State, err error) error {
	if errors.Is(err, workflow.ErrInvalidTransition) || errors.Is(err, workflow.ErrSuperseded) {
		return h.sendTransitionError(chatID, state, err)
	}
	return h.tg.SendText(chatID, h.msg.GenerationFailed+"\n"+h.userError(err))
}

func (h *Handler) sendTransitionError(chatID int64, state workflow.State, err error) error {
	if errors.Is(err, studio.ErrInvalidImage) {
		return h.tg.SendText(chatID, h.msg.DownloadFailed)
	}
	switch state {
	case workflow.StateAnalyzing, workflow.StateGenerating:
		return h.tg.SendText(chatID, h.msg.Busy)
	}
	return h.tg.SendText(chatID, h.msg.NotAllowed)
}

func (h *Handler) userError(err error) string {
	switch {
	case errors.Is(err, studio.ErrConfiguration):
		return h.msg.ConfigurationHint
	case errors.Is(err, studio.ErrInvalidPrompt):
		return studio.ErrInvalidPrompt.Error()
	}
	return err.Error()
}

func (h *Handler) status(st *session.Studio) string {
	mode := st.Mode()
	state := st.Fusion.State()
	if mode == session.ModeDirect {
		state = st.Direct.State()
	}
	return fmt.Sprintf(h.msg.StatusFormat, mode, h.msg.StateName(string(state)))
}

func isReferenceCaption(caption string) bool {
	c := strings.ToLower(strings.TrimSpace(caption))
	return c == "ref" || c == "reference" || c == "参考" || c == "参考图"
}

func isProductCaption(caption string) bool {
	c := strings.ToLower(strings.TrimSpace(caption))
	return c == "product" || c == "产品" || c == "产品图"
}
