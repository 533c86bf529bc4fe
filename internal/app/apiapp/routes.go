package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/ivankudzin/matchcore/internal/services/auth"
	likessvc "github.com/ivankudzin/matchcore/internal/services/likes"
	matchessvc "github.com/ivankudzin/matchcore/internal/services/matches"
	matchingsvc "github.com/ivankudzin/matchcore/internal/services/matching"
	ratesvc "github.com/ivankudzin/matchcore/internal/services/rate"
	reconcilesvc "github.com/ivankudzin/matchcore/internal/services/reconcile"
	"github.com/ivankudzin/matchcore/internal/transport/http/handlers"
)

type Dependencies struct {
	MatchingService  *matchingsvc.Service
	MatchService     *matchessvc.Service
	LikeService      *likessvc.Service
	ReconcileService *reconcilesvc.Service
	SwipeLimiter     *ratesvc.Limiter
	JWTManager       *authsvc.JWTManager
	Logger           *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	matchesHandler := handlers.NewMatchesHandler(deps.MatchingService, deps.MatchService)
	if deps.SwipeLimiter.Enabled() {
		matchesHandler.AttachLimiter(deps.SwipeLimiter)
	}
	likesHandler := handlers.NewLikesHandler(deps.LikeService)
	adminHandler := handlers.NewAdminHandler(deps.ReconcileService)

	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)
	adminRoleMW := RequireRole(authsvc.RoleAdmin)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/matches", func(r chi.Router) {
		r.Post("/", matchesHandler.Create)
		r.Get("/", matchesHandler.List)
		r.Get("/{id}", matchesHandler.Get)
		r.Delete("/{id}", matchesHandler.Delete)
	})

	r.Get("/swipes/{profileId}/cooldown", matchesHandler.Cooldown)

	r.Route("/likes", func(r chi.Router) {
		r.Get("/to/{profileId}", likesHandler.ListTo)
		r.Get("/from/{profileId}", likesHandler.ListFrom)
		r.Delete("/", likesHandler.Retract)
	})

	r.Route("/admin", func(r chi.Router) {
		r.With(authMW, adminRoleMW).Post("/reconcile", adminHandler.Reconcile)
	})
}
