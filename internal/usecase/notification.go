package usecase

import (
	"context"
	"fmt"
	"strconv"

	"fx-screener/internal/domain"
	"fx-screener/internal/metrics"
)

// sendNotifications pushes STRONG and SETUP rows to every registered device,
// at most once per instrument per cooldown.
func (uc *ScreenerUsecase) sendNotifications(ctx context.Context, rows []domain.Opportunity) {
	if uc.notifier == nil || !uc.notifier.IsEnabled() || uc.tokenRepo == nil {
		return
	}

	tokens := uc.tokenRepo.GetAllTokens()
	if len(tokens) == 0 {
		return
	}

	now := uc.now()
	cooldown := uc.opts.NotifyCooldown

	for _, opp := range rows {
		if opp.Status != domain.StatusStrong && opp.Status != domain.StatusSetup {
			continue
		}

		uc.mu.RLock()
		lastNotified, exists := uc.notifiedPairs[opp.Instrument]
		uc.mu.RUnlock()

		if exists && now.Sub(lastNotified) < cooldown {
			continue
		}

		title, body, data := notificationContent(opp)
		if err := uc.notifier.SendMulticast(ctx, tokens, title, body, data); err != nil {
			metrics.NotificationsTotal.WithLabelValues("error").Inc()
			uc.logger.Error().Err(err).Str("instrument", opp.Instrument).Msg("Error sending notification")
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		uc.logger.Info().Str("instrument", opp.Instrument).Int("devices", len(tokens)).Msg("Sent notification")

		uc.mu.Lock()
		uc.notifiedPairs[opp.Instrument] = now
		uc.mu.Unlock()
	}

	uc.mu.Lock()
	for instrument, ts := range uc.notifiedPairs {
		if now.Sub(ts) > cooldown*2 {
			delete(uc.notifiedPairs, instrument)
		}
	}
	uc.mu.Unlock()
}

func notificationContent(opp domain.Opportunity) (string, string, map[string]string) {
	var title string
	if opp.Status == domain.StatusStrong {
		title = fmt.Sprintf("%s %s STRONG - Entry Ready", opp.DisplayName, opp.Direction)
	} else {
		title = fmt.Sprintf("%s %s SETUP - Preparing", opp.DisplayName, opp.Direction)
	}

	body := fmt.Sprintf("Score: %d/%d | ADX: %.1f | RSI: %.1f | ATR: %.3f%% | Price: %s",
		opp.Score, opp.MaxScore, opp.ADX, opp.RSI, opp.ATRPercent, FormatPrice(opp.Price))

	data := map[string]string{
		"instrument": opp.Instrument,
		"direction":  string(opp.Direction),
		"score":      strconv.Itoa(opp.Score),
		"price":      FormatPrice(opp.Price),
		"status":     string(opp.Status),
		"type":       string(opp.Status),
	}
	return title, body, data
}

// SendTestNotification pushes a fixed message to every registered device.
// It returns the number of devices targeted.
func (uc *ScreenerUsecase) SendTestNotification(ctx context.Context) (int, error) {
	if uc.notifier == nil || !uc.notifier.IsEnabled() {
		return 0, ErrNotificationsDisabled
	}
	if uc.tokenRepo == nil {
		return 0, ErrNoDevices
	}
	tokens := uc.tokenRepo.GetAllTokens()
	if len(tokens) == 0 {
		return 0, ErrNoDevices
	}

	data := map[string]string{
		"type":      "test",
		"timestamp": uc.now().UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if err := uc.notifier.SendMulticast(ctx, tokens, "Test Notification",
		"This is a test notification from fx-screener. Notifications are working.", data); err != nil {
		return len(tokens), fmt.Errorf("send test notification: %w", err)
	}
	return len(tokens), nil
}
