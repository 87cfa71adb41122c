// Package router mounts every endpoint on a chi router.
package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"plantcareapi/internal/api"
	"plantcareapi/internal/api/auth"
	"plantcareapi/internal/api/identify"
	"plantcareapi/internal/api/plant"
	"plantcareapi/internal/api/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const JSON_BODY_LIMIT = 1 << 20

func New(h *api.Handler) http.Handler {

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	if h.Config.AppBaseURL != "" {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{h.Config.AppBaseURL},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	authH := &auth.Handler{Handler: h}
	plantH := &plant.Handler{Handler: h}
	identifyH := &identify.Handler{Handler: h}
	userH := &user.Handler{Handler: h}

	router.Route("/api", func(r chi.Router) {

		// auth endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestSize(JSON_BODY_LIMIT))
			r.Post("/auth/register", authH.Register)
			r.Post("/auth/login", h.LoginRateLimit(authH.Login))
			r.Post("/auth/logout", authH.Logout)
			r.Post("/auth/reset-password", authH.ResetPassword)
			r.Post("/auth/update-password", authH.UpdatePassword)
			r.Get("/user", h.AuthMiddleware(userH.GetUser))
		})

		// plant endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestSize(JSON_BODY_LIMIT))
			r.Get("/plants", h.AuthMiddleware(plantH.ListPlants))
			r.Post("/plants", h.AuthMiddleware(plantH.CreatePlant))
			r.Get("/plants/{id}", h.AuthMiddleware(plantH.GetPlant))
			r.Patch("/plants/{id}", h.AuthMiddleware(plantH.UpdatePlant))
			r.Delete("/plants/{id}", h.AuthMiddleware(plantH.DeletePlant))
			r.Delete("/plants/{id}/photos/{photoId}", h.AuthMiddleware(plantH.DeletePhoto))
			r.Patch("/plants/{id}/photos/{photoId}/cover", h.AuthMiddleware(plantH.SetCover))
		})

		// multipart endpoints limit their own bodies
		r.Post("/plants/{id}/photos", h.AuthMiddleware(plantH.UploadPhoto))
		r.Post("/identify", h.AuthMiddleware(identifyH.Identify))

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			h.Res(&api.ResParams{W: w, R: r, Code: http.StatusNotFound, ResData: api.ErrMsg("Nicht gefunden.")})
		})
	})

	// pages
	router.Group(func(r chi.Router) {
		r.Use(h.SessionGate)
		r.Get("/auth/callback", authH.Callback)
		r.Get("/*", pages(h.Config.WebDir))
	})

	return router

}

// pages serves the built frontend. Paths without a file fall back to
// index.html so client side routes resolve.
func pages(webDir string) http.HandlerFunc {

	if webDir == "" {
		return http.NotFound
	}

	files := http.FileServer(http.Dir(webDir))
	index := filepath.Join(webDir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		p := filepath.Join(webDir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		if filepath.Ext(r.URL.Path) != "" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}

}
