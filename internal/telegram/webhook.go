package telegram

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	secretHeader  = "X-Telegram-Bot-Api-Secret-Token"
	handleTimeout = 2 * time.Minute
)

// Register points the bot's webhook at url.
func (b *Bot) Register(ctx context.Context, url, secret string) error {
	if err := b.client.SetWebhook(ctx, url, secret); err != nil {
		return err
	}
	b.log.Info("telegram webhook registered", zap.String("url", url))
	return nil
}

// Unregister removes the webhook so Telegram stops delivering updates.
func (b *Bot) Unregister(ctx context.Context) error {
	return b.client.DeleteWebhook(ctx)
}

// Webhook acknowledges each update at once and handles it in the background.
func (b *Bot) Webhook(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" && c.GetHeader(secretHeader) != secret {
			c.Status(http.StatusUnauthorized)
			return
		}

		var upd Update
		if err := c.ShouldBindJSON(&upd); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
			defer cancel()
			b.Handle(ctx, upd)
		}()
		c.Status(http.StatusOK)
	}
}
