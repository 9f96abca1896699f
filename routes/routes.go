package routes

import (
	"github.com/Dosada05/matchpoint/handlers"
	"github.com/Dosada05/matchpoint/middleware"
	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/services"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRoutes wires every handler into the router. Reads are public;
// mutations require a Bearer token, with role checks on top where the
// service layer does not already enforce ownership.
func SetupRoutes(
	router *chi.Mux,
	authService services.AuthService,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	entryHandler *handlers.EntryHandler,
	drawHandler *handlers.DrawHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/{tournamentID}", tournamentHandler.Get)
		r.Get("/{tournamentID}/entries", entryHandler.List)
		r.Get("/{tournamentID}/bracket", drawHandler.GetBracket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(authService))
			r.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleOrganizer))

			r.Post("/", tournamentHandler.Create)
			r.Patch("/{tournamentID}/status", tournamentHandler.UpdateStatus)
			r.Post("/{tournamentID}/logo", tournamentHandler.UploadLogo)
			r.Post("/{tournamentID}/umpires", tournamentHandler.AddUmpire)

			r.Post("/{tournamentID}/entries", entryHandler.Create)
			r.Put("/{tournamentID}/entries", entryHandler.ReplaceImport)

			r.Post("/{tournamentID}/draw", drawHandler.Generate)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(authService))
			r.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleOrganizer, models.RoleUmpire))

			r.Post("/{matchID}/start", matchHandler.Start)
			r.Post("/{matchID}/pause", matchHandler.Pause)
			r.Post("/{matchID}/resume", matchHandler.Resume)
			r.Post("/{matchID}/finish", matchHandler.Finish)
			r.Post("/{matchID}/revert-finish", matchHandler.RevertFinish)
			r.Post("/{matchID}/points", matchHandler.AddPoint)
			r.Post("/{matchID}/points/undo", matchHandler.UndoPoint)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
