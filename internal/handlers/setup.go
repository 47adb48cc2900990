package handlers

import (
	"chatapp-backend/internal/blobstore"
	"chatapp-backend/internal/config"
	"chatapp-backend/internal/database"
	"chatapp-backend/internal/hub"
	"chatapp-backend/internal/jwt"
	"chatapp-backend/internal/keyValue"
	"chatapp-backend/internal/permissions"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Config *config.Config
	Sugar  *zap.SugaredLogger
	Store  *database.Store
	Gate   *permissions.Gate
	Hub    *hub.Hub
	Blobs  *blobstore.Store
	Cache  *keyValue.Store
	Issuer *jwt.Issuer
}

type Handler struct {
	cfg    *config.Config
	sugar  *zap.SugaredLogger
	store  *database.Store
	gate   *permissions.Gate
	hub    *hub.Hub
	blobs  *blobstore.Store
	cache  *keyValue.Store
	issuer *jwt.Issuer

	attachments blobstore.Policy
}

func New(deps Deps) *Handler {
	extensions := deps.Config.AttachmentExtensions
	if len(extensions) == 0 {
		extensions = blobstore.DefaultAttachmentExtensions
	}

	return &Handler{
		cfg:    deps.Config,
		sugar:  deps.Sugar,
		store:  deps.Store,
		gate:   deps.Gate,
		hub:    deps.Hub,
		blobs:  deps.Blobs,
		cache:  deps.Cache,
		issuer: deps.Issuer,

		attachments: blobstore.NewPolicy(extensions, false),
	}
}

func (h *Handler) Router() http.Handler {
	cfg := h.cfg

	r := chi.NewRouter()
	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(CountStatus)

	if cfg.Cors {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		h.hub.CheckOrigin(func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(cfg.CorsOrigins, "*") || slices.Contains(cfg.CorsOrigins, origin)
		})
	}

	r.Handle("/metrics", promhttp.Handler())

	// websockets stay open far longer than the request timeout
	websocketPath := "/ws"
	if cfg.BehindNginx {
		websocketPath = "/ws/"
	}
	r.With(h.UserVerifier).Get(websocketPath, h.HandleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.With(h.UserVerifier).Get(blobstoreRoute, h.ServeUpload)

		r.Route("/api", func(api chi.Router) {
			api.Get("/health", h.Health)

			api.Route("/auth", func(r chi.Router) {
				if cfg.RateLimitPerMinute > 0 {
					r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
				}
				r.Post("/register", h.Register)
				r.Post("/login", h.Login)
				r.Post("/logout", h.Logout)
				r.With(h.UserVerifier).Get("/isLoggedIn", h.IsLoggedIn)
			})

			api.Group(func(r chi.Router) {
				r.Use(h.UserVerifier)

				r.Get("/user", h.GetUserInfo)
				r.Patch("/user", h.UpdateUserInfo)
				r.Get("/users/{userID}", h.GetUserProfile)

				r.Route("/servers", func(r chi.Router) {
					r.Post("/", h.CreateServer)
					r.Get("/", h.GetServerList)

					r.Route("/{serverID}", func(r chi.Router) {
						r.Get("/", h.GetServer)
						r.Put("/", h.UpdateServer)
						r.Delete("/", h.DeleteServer)
						r.Post("/join", h.JoinServer)
						r.Post("/leave", h.LeaveServer)

						r.Get("/members", h.GetMemberList)
						r.Delete("/members/{userID}", h.KickMember)
						r.Post("/members/{userID}/roles", h.AssignRole)
						r.Delete("/members/{userID}/roles/{roleID}", h.UnassignRole)

						r.Post("/channels", h.CreateChannel)
						r.Get("/channels", h.GetChannelList)
						r.Post("/categories", h.CreateCategory)
						r.Get("/categories", h.GetCategoryList)
						r.Post("/roles", h.CreateRole)
						r.Get("/roles", h.GetRoleList)
					})
				})

				r.Patch("/channels/{channelID}", h.UpdateChannel)
				r.Delete("/channels/{channelID}", h.DeleteChannel)
				r.Get("/channels/{channelID}/messages", h.GetMessageList)
				r.Post("/channels/{channelID}/messages", h.CreateMessage)

				r.Delete("/categories/{categoryID}", h.DeleteCategory)
				r.Delete("/roles/{roleID}", h.DeleteRole)

				r.Patch("/messages/{messageID}", h.EditMessage)
				r.Delete("/messages/{messageID}", h.DeleteMessage)

				r.Route("/friends", func(r chi.Router) {
					r.Get("/", h.GetFriendList)
					r.Post("/add", h.AddFriend)
					r.Get("/requests", h.GetFriendRequests)
					r.Post("/requests/{requestID}", h.AnswerFriendRequest)
					r.Delete("/{userID}", h.RemoveFriend)
					r.Post("/{userID}/block", h.BlockUser)
				})
			})
		})
	})

	return r
}
