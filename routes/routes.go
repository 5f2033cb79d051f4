package routes

import (
	"net/http"

	_ "github.com/Dosada05/bracket-engine/docs"
	"github.com/Dosada05/bracket-engine/handlers"
	"github.com/Dosada05/bracket-engine/middleware"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Tournament  *handlers.TournamentHandler
	Participant *handlers.ParticipantHandler
	Match       *handlers.MatchHandler
	Upload      *handlers.UploadHandler
	WebSocket   *handlers.WebSocketHandler
}

func SetupRoutes(router *chi.Mux, h Handlers, jwtSecret []byte, allowedOrigins []string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	authenticate := middleware.Authenticate(jwtSecret)

	router.Route("/api/v1", func(r chi.Router) {
		// Публичные маршруты
		r.Get("/tournaments", h.Tournament.ListHandler)
		r.Get("/tournaments/{tournamentID}", h.Tournament.GetByIDHandler)
		r.Get("/tournaments/{tournamentID}/bracket", h.Tournament.GetBracketHandler)
		r.Get("/tournaments/{tournamentID}/matches", h.Match.ListByTournament)
		r.Get("/tournaments/{tournamentID}/participants", h.Participant.ListByTournament)

		// Игроки
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize(models.RolePlayer, models.RoleOrganizer, models.RoleAdmin))

			r.Get("/matches/{matchID}", h.Match.GetByID)
			r.Post("/tournaments/{tournamentID}/participants", h.Participant.Register)
			r.Delete("/tournaments/{tournamentID}/participants/me", h.Participant.Withdraw)
			r.Post("/matches/{matchID}/result", h.Match.SubmitResult)
			r.Post("/matches/{matchID}/dispute", h.Match.ReportDispute)
			r.Post("/matches/{matchID}/files", h.Upload.UploadMatchFile)
		})

		// Администраторы и организаторы
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireAdmin)

			r.Post("/tournaments", h.Tournament.CreateHandler)
			r.Patch("/tournaments/{tournamentID}/status", h.Tournament.UpdateStatusHandler)
			r.Delete("/tournaments/{tournamentID}", h.Tournament.DeleteHandler)
			r.Post("/tournaments/{tournamentID}/bracket", h.Tournament.GenerateBracketHandler)
			r.Post("/participants/{participantID}/paid", h.Participant.MarkPaid)
			r.Post("/participants/{participantID}/refund", h.Participant.MarkRefunded)
			r.Post("/matches/{matchID}/start", h.Match.Start)
			r.Post("/matches/{matchID}/verify", h.Match.Verify)
			r.Post("/matches/{matchID}/dispute/resolve", h.Match.ResolveDispute)
		})
	})
}
