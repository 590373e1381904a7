package handlers

import (
	"net/http"

	"chatforms-backend/internal/builder"
	"chatforms-backend/internal/conversation"
	"chatforms-backend/internal/metrics"
	"chatforms-backend/internal/middleware"
	"chatforms-backend/internal/ratelimiter"
	"chatforms-backend/internal/services"
	"chatforms-backend/internal/telegram"
	"chatforms-backend/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the router wires into its handlers.
type Deps struct {
	Log         *zap.Logger
	CORSOrigins []string

	Auth      *services.AuthService
	Users     *services.UserService
	Forms     *services.FormService
	Responses *services.ResponseService
	AI        *services.AIService

	Drafts *builder.DraftStore
	Flows  *conversation.Registry
	Hub    *ws.Hub

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// AILimiter throttles generation endpoints. Nil means unlimited.
	AILimiter *ratelimiter.Limiter

	// Telegram is optional; its webhook route exists only when set.
	Telegram              *telegram.Bot
	TelegramWebhookSecret string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.RequestLogger(d.Log, d.Metrics))

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.SessionTokenHeader},
		AllowCredentials: !containsWildcard(origins),
	}))

	authHandler := NewAuthHandler(d.Users, d.Log)
	formHandler := NewFormHandler(d.Forms, d.Responses, d.Metrics, d.Log)
	draftHandler := NewDraftHandler(d.Drafts, d.Forms, d.Metrics, d.Log)
	aiHandler := NewAIGenerateHandler(d.AI, d.Drafts, d.Log)
	responseHandler := NewResponseHandler(d.Forms, d.Responses, d.Flows, d.Hub, d.Metrics, d.Log)
	conversationHandler := NewConversationHandler(d.Forms, d.Flows, d.AI, responseHandler, d.Metrics, d.Log)
	wsHandler := NewWSHandler(d.Hub, d.Auth, d.Forms, d.Log)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/ws/forms/:id", wsHandler.HandleWebSocket)
	if d.Telegram != nil {
		r.POST("/telegram/webhook", d.Telegram.Webhook(d.TelegramWebhookSecret))
	}

	jwtAuth := middleware.JWTAuth(d.Auth, d.Users, d.Log)
	sessionAuth := middleware.SessionAuth(d.Responses)
	limit := middleware.RateLimit(d.AILimiter)

	api := r.Group("/api/v1")
	{
		api.GET("/me", jwtAuth, authHandler.Me)

		forms := api.Group("/forms")
		forms.Use(jwtAuth)
		{
			forms.GET("/ai-status", aiHandler.CheckAI)
			forms.POST("/generate", limit, aiHandler.Generate)
			forms.GET("", formHandler.ListForms)
			forms.POST("", formHandler.CreateForm)
			forms.GET("/:id", formHandler.GetForm)
			forms.PUT("/:id", formHandler.UpdateForm)
			forms.DELETE("/:id", formHandler.DeleteForm)
			forms.GET("/:id/responses", formHandler.ListResponses)
			forms.GET("/:id/stats", formHandler.GetStats)
		}

		drafts := api.Group("/drafts")
		drafts.Use(jwtAuth)
		{
			drafts.POST("", draftHandler.CreateDraft)
			drafts.GET("/:id", draftHandler.GetDraft)
			drafts.PUT("/:id", draftHandler.UpdateDraft)
			drafts.DELETE("/:id", draftHandler.DeleteDraft)
			drafts.POST("/:id/questions", draftHandler.AddQuestion)
			drafts.PUT("/:id/questions/:qid", draftHandler.UpdateQuestion)
			drafts.DELETE("/:id/questions/:qid", draftHandler.DeleteQuestion)
			drafts.POST("/:id/questions/:qid/options", draftHandler.AddOption)
			drafts.PUT("/:id/questions/:qid/options/:oid", draftHandler.UpdateOption)
			drafts.DELETE("/:id/questions/:qid/options/:oid", draftHandler.DeleteOption)
			drafts.POST("/:id/drag-end", draftHandler.DragEnd)
			drafts.POST("/:id/save", draftHandler.SaveDraft)
		}

		public := api.Group("/public/forms")
		{
			public.GET("/:id", responseHandler.GetPublicForm)
			public.POST("/:id/responses", responseHandler.StartResponse)
		}

		responses := api.Group("/responses/:id")
		responses.Use(sessionAuth)
		{
			responses.POST("/answers", responseHandler.SaveAnswer)
			responses.POST("/submit", responseHandler.Submit)
			responses.POST("/interactions", responseHandler.RecordInteraction)

			responses.GET("/conversation", conversationHandler.State)
			responses.GET("/conversation/stream", limit, conversationHandler.Stream)
			responses.POST("/conversation/next", conversationHandler.Next)
			responses.POST("/conversation/answer", conversationHandler.Answer)
		}
	}

	return r
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
