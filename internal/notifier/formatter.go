package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"NFTSentinel/internal/calculator"
	"NFTSentinel/internal/model"
)

// FormatMessage is the plain-text notification stored for a triggered alert.
func FormatMessage(alert model.PriceAlert, q model.Quote) string {
	suffix := "Price target reached!"
	if alert.ThresholdType == model.ThresholdBelow {
		suffix = "Great time to buy!"
	}
	return fmt.Sprintf("%s is now %s %s! %s", alert.CollectionName, q.Price.String(), q.Currency, suffix)
}

// FormatTriggerHTML formats a triggered alert for Telegram.
func FormatTriggerHTML(t model.Trigger) string {
	var b strings.Builder
	a := t.Alert

	b.WriteString("🚨 <b>NFT price alert</b>\n\n")
	b.WriteString(html.EscapeString(t.Notification.Message) + "\n\n")
	b.WriteString(fmt.Sprintf("Target: %s %s %s\n", a.ThresholdType, a.ThresholdPrice.String(), a.Currency))
	if t.Quote.Source != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", html.EscapeString(t.Quote.Source)))
	}

	if p := t.Purchase; p != nil {
		if p.Success {
			b.WriteString(fmt.Sprintf("\n🛒 Auto-buy executed at %s %s\n", a.AutoBuyPrice.String(), *a.AutoBuyCurrency))
			b.WriteString(fmt.Sprintf("   tx: <code>%s</code>\n", p.TransactionID))
		} else {
			b.WriteString(fmt.Sprintf("\n⚠️ Auto-buy failed: %s\n", html.EscapeString(p.Error)))
		}
	}
	return b.String()
}

// FormatAlertList formats a user's alerts for display.
func FormatAlertList(alerts []model.PriceAlert) string {
	if len(alerts) == 0 {
		return "No price alerts yet."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔔 <b>Price alerts</b> (%d)\n\n", len(alerts)))
	for _, a := range alerts {
		state := "active"
		if !a.IsActive {
			state = "triggered"
		}
		b.WriteString(fmt.Sprintf("#%d %s: %s %s %s [%s]",
			a.ID, html.EscapeString(a.CollectionName), a.ThresholdType, a.ThresholdPrice.String(), a.Currency, state))
		if a.WantsAutoBuy() {
			b.WriteString(fmt.Sprintf(" auto-buy %s %s", a.AutoBuyPrice.String(), *a.AutoBuyCurrency))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatNotificationList formats recent notifications, newest first.
func FormatNotificationList(ns []model.Notification) string {
	if len(ns) == 0 {
		return "No notifications yet."
	}
	var b strings.Builder
	b.WriteString("📬 <b>Recent notifications</b>\n\n")
	for _, n := range ns {
		b.WriteString(fmt.Sprintf("%s  %s\n", n.TriggeredAt.Format("01-02 15:04"), html.EscapeString(n.Message)))
	}
	return b.String()
}

// MonitorStatus is the subset of monitor state shown to chat users.
type MonitorStatus struct {
	Running     bool
	Interval    time.Duration
	LastCycleAt time.Time
	Processed   int
	Triggered   int
}

// FormatStatus formats the monitoring loop state.
func FormatStatus(s MonitorStatus) string {
	var b strings.Builder
	b.WriteString("📡 <b>Monitoring</b>\n\n")
	if s.Running {
		b.WriteString(fmt.Sprintf("State: running every %s\n", s.Interval))
	} else {
		b.WriteString("State: stopped\n")
	}
	if !s.LastCycleAt.IsZero() {
		b.WriteString(fmt.Sprintf("Last cycle: %s\n", s.LastCycleAt.Format("2006-01-02 15:04:05")))
		b.WriteString(fmt.Sprintf("Checked alerts: %d | Triggered: %d\n", s.Processed, s.Triggered))
	}
	return b.String()
}

// FormatPrice formats the latest price of a collection with a history summary.
func FormatPrice(collection string, latest *model.PriceHistoryPoint, s calculator.Summary) string {
	name := html.EscapeString(collection)
	if latest == nil {
		return fmt.Sprintf("No price recorded for %s yet.", name)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💎 <b>%s</b>\n\n", name))
	b.WriteString(fmt.Sprintf("Floor: %s %s (%s)\n", latest.Price.String(), latest.Currency, html.EscapeString(latest.Source)))
	b.WriteString(fmt.Sprintf("Updated: %s\n", latest.Timestamp.Format("2006-01-02 15:04")))
	if s.Count > 1 {
		b.WriteString(fmt.Sprintf("\nLast %d points: high %s | low %s | avg %s\n", s.Count, s.High, s.Low, s.Average))
		b.WriteString(fmt.Sprintf("Change: %s %s (%s%%)\n", s.Change.String(), s.Currency, s.ChangePercent.String()))
	}
	return b.String()
}
