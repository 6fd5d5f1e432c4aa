package routes

import (
	"encoding/json"
	"net/http"

	"epay/epay/config"
	"epay/epay/controllers"
	"epay/epay/middlewares"
	"epay/epay/services/chat"
	"epay/epay/sources/storage"
	"epay/epay/utils/logging"
	"epay/epay/utils/types"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func ChatRoutes(ctrl *controllers.ChatController, console *controllers.ConsoleController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))
		gr.Use(middlewares.RequireRole(middlewares.ConsoleRoles...))

		// GET /chat/conversations : roster, most recently active first
		gr.Get("/conversations", handleJSON(func(r *http.Request) (any, int, error) {
			users, err := ctrl.Conversations(r.Context())
			if err != nil {
				return nil, 0, err
			}
			return users, http.StatusOK, nil
		}))

		gr.Get("/users/{user_id}/messages", handleJSON(func(r *http.Request) (any, int, error) {
			msgs, err := ctrl.ListMessages(r.Context(), chi.URLParam(r, "user_id"))
			if err != nil {
				return nil, 0, err
			}
			return msgs, http.StatusOK, nil
		}))

		gr.Post("/users/{user_id}/messages", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.SendMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			msg, err := ctrl.SendMessage(r.Context(), chi.URLParam(r, "user_id"), req)
			if err != nil {
				return nil, 0, err
			}
			return msg, http.StatusCreated, nil
		}))

		// POST /chat/users/{user_id}/images : multipart "file"
		gr.Post("/users/{user_id}/images", handleJSON(func(r *http.Request) (any, int, error) {
			r.Body = http.MaxBytesReader(nil, r.Body, cfg.Chat.MaxImageBytes+1<<20)
			if err := r.ParseMultipartForm(cfg.Chat.MaxImageBytes); err != nil {
				return nil, http.StatusBadRequest, err
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				return nil, http.StatusBadRequest, &chat.ValidationError{Field: "file", Reason: "required"}
			}
			defer file.Close()

			msg, err := ctrl.SendImage(r.Context(), chi.URLParam(r, "user_id"), storage.File{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        file,
			})
			if err != nil {
				return nil, 0, err
			}
			return msg, http.StatusCreated, nil
		}))

		gr.Get("/replies", handleJSON(func(r *http.Request) (any, int, error) {
			replies, err := ctrl.ListReplies(r.Context())
			if err != nil {
				return nil, 0, err
			}
			return replies, http.StatusOK, nil
		}))

		gr.Post("/replies", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.CreateSavedReplyRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			reply, err := ctrl.CreateReply(r.Context(), req)
			if err != nil {
				return nil, 0, err
			}
			return reply, http.StatusCreated, nil
		}))

		gr.Delete("/replies/{id}", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				return nil, http.StatusBadRequest, err
			}
			if err := ctrl.DeleteReply(r.Context(), id); err != nil {
				return nil, 0, err
			}
			return nil, http.StatusNoContent, nil
		}))

		// GET /chat/console/ws : live console
		gr.HandleFunc("/console/ws", func(w http.ResponseWriter, r *http.Request) {
			conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
			if err != nil {
				logging.ErrorLogger.Error("websocket accept error", zap.Error(err))
				return
			}
			console.Serve(r.Context(), conn, middlewares.UserIDFromContext(r.Context()))
		})
	})
	return r
}
