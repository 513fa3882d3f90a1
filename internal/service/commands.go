package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"NFTSentinel/internal/model"
	"NFTSentinel/internal/notifier"
)

const helpText = `<b>NFT Sentinel</b>

/alerts - active price alerts
/notifications - recent notifications
/status - monitoring status
/price &lt;collection&gt; - latest floor price`

// CommandHandler answers chat commands on behalf of userID.
func (s *AlertService) CommandHandler(userID string) notifier.CommandHandler {
	return func(ctx context.Context, text string) string {
		cmd, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
		// "/price@SentinelBot" in group chats
		cmd, _, _ = strings.Cut(cmd, "@")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(cmd) {
		case "/start", "/help":
			return helpText
		case "/alerts":
			alerts, err := s.UserAlerts(ctx, userID)
			if err != nil {
				return s.commandError(cmd, err)
			}
			return notifier.FormatAlertList(alerts)
		case "/notifications":
			ns, err := s.UserNotifications(ctx, userID)
			if err != nil {
				return s.commandError(cmd, err)
			}
			return notifier.FormatNotificationList(ns)
		case "/status":
			st := s.Monitor.Status()
			view := notifier.MonitorStatus{Running: st.Running, Interval: s.Interval}
			if st.LastCycle != nil {
				view.LastCycleAt = st.LastCycle.StartedAt
				view.Processed = st.LastCycle.Processed
				view.Triggered = st.LastCycle.Triggered
			}
			return notifier.FormatStatus(view)
		case "/price":
			if arg == "" {
				return "Usage: /price &lt;collection&gt;"
			}
			return s.priceReply(ctx, arg)
		default:
			return ""
		}
	}
}

func (s *AlertService) priceReply(ctx context.Context, collection string) string {
	hist, err := s.PriceHistory(ctx, collection, 0)
	if err != nil {
		return s.commandError("/price", err)
	}
	var latest *model.PriceHistoryPoint
	if len(hist.Points) > 0 {
		latest = &hist.Points[0]
	}
	return notifier.FormatPrice(collection, latest, hist.Summary)
}

func (s *AlertService) commandError(cmd string, err error) string {
	s.Log.Error("chat command failed", zap.String("command", cmd), zap.Error(err))
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return "⚠️ " + ve.Error()
	}
	return "⚠️ Something went wrong, please try again later."
}
