package handlers

import (
	"net/http"

	"plaxrec/internal/config"
	"plaxrec/internal/logger"
	"plaxrec/internal/middleware"
	"plaxrec/internal/models"
	"plaxrec/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"
)

// activeRoles are the roles that hold balances and may move them.
var activeRoles = []models.Role{
	models.RoleCollector,
	models.RoleRecycler,
	models.RoleTransformer,
	models.RoleESGBuyer,
	models.RoleAdmin,
}

type Deps struct {
	Config       config.Config
	Settlements  SettlementService
	Profiles     ProfileService
	Lookup       middleware.ProfileLookup
	Batches      BatchStore
	Transactions TransactionStore
	Audit        AuditStore
	Reconciler   Reconciler
	Institutions InstitutionCatalog
	Hub          *websocket.Hub
	Metrics      http.Handler
	Logger       *logger.Logger
}

type Handler struct {
	cfg          config.Config
	settlements  SettlementService
	profiles     ProfileService
	lookup       middleware.ProfileLookup
	batches      BatchStore
	transactions TransactionStore
	audit        AuditStore
	reconciler   Reconciler
	institutions InstitutionCatalog
	hub          *websocket.Hub
	upgrader     gorillaws.Upgrader
	metrics      http.Handler
	log          *logger.Logger
}

func New(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	hub := deps.Hub
	if hub == nil {
		hub = websocket.NewHub()
	}
	return &Handler{
		cfg:          deps.Config,
		settlements:  deps.Settlements,
		profiles:     deps.Profiles,
		lookup:       deps.Lookup,
		batches:      deps.Batches,
		transactions: deps.Transactions,
		audit:        deps.Audit,
		reconciler:   deps.Reconciler,
		institutions: deps.Institutions,
		hub:          hub,
		upgrader:     websocket.Upgrader(deps.Config.App.AllowedOrigins),
		metrics:      deps.Metrics,
		log:          log,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.App.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	authenticated := middleware.Auth(h.cfg.JWT.Secret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticated).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticated)
		r.Put("/profiles/me", h.UpdateMe)
		r.Put("/profiles/me/role", h.SelectRole)
		r.Get("/profiles/directory", h.Directory)
		r.Get("/institutions", h.ListInstitutions)
		r.Get("/batches", h.ListBatches)
		r.Get("/batches/certified", h.ListCertifiedBatches)
		r.Get("/inventory/summary", h.InventorySummary)
		r.Get("/transactions", h.ListTransactions)
		r.Get("/ws/balances", h.WSBalances)

		r.Route("/settlements", func(r chi.Router) {
			r.With(middleware.RequireRole(h.lookup, models.RoleRecycler)).Post("/collections", h.RegisterCollection)
			r.With(middleware.RequireRole(h.lookup, models.RoleRecycler)).Post("/nfe", h.EmitNFe)
			r.With(middleware.RequireRole(h.lookup, models.RoleESGBuyer)).Post("/esg-purchases", h.BuyCertifiedLots)
			r.With(middleware.RequireRole(h.lookup, activeRoles...)).Post("/withdrawals", h.Withdraw)
			r.With(middleware.RequireRole(h.lookup, activeRoles...)).Post("/reinvestments", h.Reinvest)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(h.lookup, models.RoleAdmin))
			r.Get("/profiles", h.AdminListProfiles)
			r.Get("/transactions", h.AdminListTransactions)
			r.Get("/audit", h.ListAuditLogs)
			r.Get("/reconcile", h.Reconcile)
		})
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.metrics != nil {
		router.Handle("/metrics", h.metrics)
	}
	return router
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	websocket.ServeWS(w, r, h.upgrader, h.hub, userID)
}
