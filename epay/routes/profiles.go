package routes

import (
	"encoding/json"
	"net/http"

	"epay/epay/config"
	"epay/epay/controllers"
	"epay/epay/middlewares"
	"epay/epay/utils/types"

	"github.com/go-chi/chi/v5"
)

func ProfileRoutes(ctrl *controllers.ProfileController, cfg config.Config) chi.Router {
	r := chi.NewRouter()

	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))
		gr.Use(middlewares.RequireRole(middlewares.ConsoleRoles...))

		gr.Get("/me", handleJSON(func(r *http.Request) (any, int, error) {
			p, err := ctrl.GetProfile(r.Context(), middlewares.UserIDFromContext(r.Context()))
			if err != nil {
				return nil, 0, err
			}
			return p, http.StatusOK, nil
		}))

		gr.Get("/{user_id}", handleJSON(func(r *http.Request) (any, int, error) {
			p, err := ctrl.GetProfile(r.Context(), chi.URLParam(r, "user_id"))
			if err != nil {
				return nil, 0, err
			}
			return p, http.StatusOK, nil
		}))

		gr.With(middlewares.RequireRole("super_admin")).Post("/", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.CreateProfileRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			p, err := ctrl.CreateProfile(r.Context(), req)
			if err != nil {
				return nil, http.StatusBadRequest, err
			}
			return p, http.StatusCreated, nil
		}))
	})

	return r
}
