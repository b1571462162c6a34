package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gametopup/models"
	"gametopup/service"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data

	switch {
	case strings.HasPrefix(data, "topup_pay_"):
		b.cbSelectChannel(ctx, cb, strings.TrimPrefix(data, "topup_pay_"))
	case data == "topup_cancel":
		b.cbCancelDraft(cb)
	case data == "request_register":
		b.cbRequestRegister(ctx, cb)

	case strings.HasPrefix(data, "order_confirm_"):
		b.cbResolveOrder(ctx, cb, strings.TrimPrefix(data, "order_confirm_"), true)
	case strings.HasPrefix(data, "order_cancel_"):
		b.cbResolveOrder(ctx, cb, strings.TrimPrefix(data, "order_cancel_"), false)
	case strings.HasPrefix(data, "topup_approve_"):
		b.cbResolveTopup(ctx, cb, strings.TrimPrefix(data, "topup_approve_"), true)
	case strings.HasPrefix(data, "topup_reject_"):
		b.cbResolveTopup(ctx, cb, strings.TrimPrefix(data, "topup_reject_"), false)
	case strings.HasPrefix(data, "register_approve_"):
		b.cbResolveRegister(ctx, cb, strings.TrimPrefix(data, "register_approve_"), true)
	case strings.HasPrefix(data, "register_reject_"):
		b.cbResolveRegister(ctx, cb, strings.TrimPrefix(data, "register_reject_"), false)

	default:
		b.answer(cb, "")
	}
}

func (b *Bot) cbSelectChannel(ctx context.Context, cb *tgbotapi.CallbackQuery, channel string) {
	userID := strconv.FormatInt(cb.From.ID, 10)

	if channel != "KPay" && channel != "Wave" {
		b.answer(cb, "Unknown payment method.")
		return
	}

	if err := b.svc.SelectChannel(userID, channel); err != nil {
		if errors.Is(err, service.ErrNoDraft) {
			b.answer(cb, "Topup expired. Start again with /topup.")
			return
		}
		b.answer(cb, "Something went wrong.")
		return
	}
	b.answer(cb, channel+" selected")

	settings, err := b.svc.Settings(ctx)
	if err != nil {
		settings = models.DefaultSettings()
	}

	number, name := settings.Payment.KpayNumber, settings.Payment.KpayName
	if channel == "Wave" {
		number, name = settings.Payment.WaveNumber, settings.Payment.WaveName
	}
	if number == "" {
		number, name = "(not configured)", "(not configured)"
	}

	b.editText(cb, fmt.Sprintf(
		"💳 *Pay via %s*\n\n📱 Number: `%s`\n👤 Name: %s\n\n"+
			"📸 Send a screenshot of the payment receipt to finish your topup.\n"+
			"Use /cancel to abort.",
		channel, number, name))
}

func (b *Bot) cbCancelDraft(cb *tgbotapi.CallbackQuery) {
	userID := strconv.FormatInt(cb.From.ID, 10)
	b.svc.CancelDraft(userID)
	b.answer(cb, "Cancelled")
	b.editText(cb, "❌ Topup cancelled.")
}

func (b *Bot) cbRequestRegister(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := strconv.FormatInt(cb.From.ID, 10)
	if b.auth.IsAuthorized(ctx, userID) {
		b.answer(cb, "You already have access.")
		return
	}
	b.sendAccessRequest(ctx, cb.From)
	b.answer(cb, "Request sent")
	b.editText(cb, "📨 Your access request was sent. You will be notified once it is reviewed.")
}

func (b *Bot) cbResolveOrder(ctx context.Context, cb *tgbotapi.CallbackQuery, orderID string, confirm bool) {
	actorID := strconv.FormatInt(cb.From.ID, 10)
	if !b.auth.IsAdmin(ctx, actorID) {
		b.answer(cb, "Admins only.")
		return
	}

	if confirm {
		order, userID, err := b.svc.ConfirmOrder(ctx, orderID, actorID)
		if err != nil {
			b.answerResolveErr(cb, err)
			return
		}
		b.answer(cb, "Confirmed")
		b.appendOutcome(cb, fmt.Sprintf("✅ Confirmed by %s", displayName(cb.From)))
		b.notifier.NotifyUser(userID, fmt.Sprintf(
			"✅ *Order complete!*\n\n🧾 `%s`\n💎 %s has been delivered to game ID `%s`.",
			order.OrderID, order.Product, order.GameID))
		return
	}

	order, userID, err := b.svc.CancelOrder(ctx, orderID, actorID)
	if err != nil {
		var inconsistency *service.LedgerInconsistencyError
		if errors.As(err, &inconsistency) {
			// Status flipped but the refund failed; operators were already
			// alerted by the service. Tell the admin too.
			b.answer(cb, "Cancelled, but refund FAILED. Check alerts.")
			b.appendOutcome(cb, "⚠️ Cancelled, refund failed, manual fix needed")
			return
		}
		b.answerResolveErr(cb, err)
		return
	}
	b.answer(cb, "Cancelled and refunded")
	b.appendOutcome(cb, fmt.Sprintf("❌ Cancelled by %s, %d MMK refunded", displayName(cb.From), order.Price))
	b.notifier.NotifyUser(userID, fmt.Sprintf(
		"❌ *Order cancelled.*\n\n🧾 `%s`\n💵 %d MMK has been refunded to your balance.",
		order.OrderID, order.Price))
}

func (b *Bot) cbResolveTopup(ctx context.Context, cb *tgbotapi.CallbackQuery, topupID string, approve bool) {
	actorID := strconv.FormatInt(cb.From.ID, 10)
	if !b.auth.IsAdmin(ctx, actorID) {
		b.answer(cb, "Admins only.")
		return
	}

	if approve {
		topup, userID, err := b.svc.ApproveTopup(ctx, topupID, actorID)
		if err != nil {
			b.answerResolveErr(cb, err)
			return
		}
		b.answer(cb, "Approved")
		b.appendOutcome(cb, fmt.Sprintf("✅ Approved by %s", displayName(cb.From)))
		b.notifier.NotifyUser(userID, fmt.Sprintf(
			"✅ *Topup approved!*\n\n💵 %d MMK has been added to your balance.", topup.Amount))
		return
	}

	topup, userID, err := b.svc.RejectTopup(ctx, topupID, actorID)
	if err != nil {
		b.answerResolveErr(cb, err)
		return
	}
	b.answer(cb, "Rejected")
	b.appendOutcome(cb, fmt.Sprintf("❌ Rejected by %s", displayName(cb.From)))
	b.notifier.NotifyUser(userID, fmt.Sprintf(
		"❌ *Topup rejected.*\n\n🧾 `%s` for %d MMK was not accepted.\n"+
			"Check your receipt and try again, or contact support.",
		topup.TopupID, topup.Amount))
}

func (b *Bot) cbResolveRegister(ctx context.Context, cb *tgbotapi.CallbackQuery, targetID string, approve bool) {
	actorID := strconv.FormatInt(cb.From.ID, 10)
	if !b.auth.IsAdmin(ctx, actorID) {
		b.answer(cb, "Admins only.")
		return
	}

	if approve {
		if err := b.svc.Store().AddAuthorizedUser(ctx, targetID); err != nil {
			b.log.Errorf("authorize %s: %v", targetID, err)
			b.answer(cb, "Failed, try again.")
			return
		}
		b.answer(cb, "Access granted")
		b.appendOutcome(cb, fmt.Sprintf("✅ Granted by %s", displayName(cb.From)))
		b.notifier.NotifyUser(targetID, "✅ You have been granted access. Send /start to begin.")
		return
	}

	b.answer(cb, "Rejected")
	b.appendOutcome(cb, fmt.Sprintf("❌ Rejected by %s", displayName(cb.From)))
	b.notifier.NotifyUser(targetID, "❌ Your access request was declined.")
}

// answerResolveErr maps the shared failure modes of the four resolution
// callbacks. A lost race is reported as already processed, not as an error.
func (b *Bot) answerResolveErr(cb *tgbotapi.CallbackQuery, err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyHandled):
		b.answer(cb, "Already processed by another admin.")
		b.appendOutcome(cb, "ℹ️ Already processed")
	case errors.Is(err, service.ErrUserNotFound):
		b.answer(cb, "User no longer exists.")
	default:
		b.log.Errorf("resolve callback: %v", err)
		b.answer(cb, "Something went wrong, try again.")
	}
}

func (b *Bot) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Warnf("answer callback: %v", err)
	}
}

// editText replaces the callback's message body and drops its keyboard.
func (b *Bot) editText(cb *tgbotapi.CallbackQuery, text string) {
	if cb.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
	edit.ParseMode = "Markdown"
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warnf("edit message: %v", err)
	}
}

// appendOutcome stamps the review card with its result and removes the
// buttons, so a stale card cannot be clicked twice. Works for both text
// cards and photo captions.
func (b *Bot) appendOutcome(cb *tgbotapi.CallbackQuery, outcome string) {
	if cb.Message == nil {
		return
	}
	chatID, messageID := cb.Message.Chat.ID, cb.Message.MessageID

	if cb.Message.Caption != "" {
		edit := tgbotapi.NewEditMessageCaption(chatID, messageID, cb.Message.Caption+"\n\n"+outcome)
		edit.ParseMode = "Markdown"
		if _, err := b.api.Send(edit); err != nil {
			b.log.Warnf("edit caption: %v", err)
		}
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, cb.Message.Text+"\n\n"+outcome)
	edit.ParseMode = "Markdown"
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warnf("edit message: %v", err)
	}
}
