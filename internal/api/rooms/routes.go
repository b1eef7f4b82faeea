package rooms

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers all room-related HTTP routes with the router.
func RegisterRoutes(r *mux.Router, handler *Handler) {
	r.HandleFunc("/rooms", handler.CreateRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{roomId}", handler.GetRoom).Methods(http.MethodGet)

	r.HandleFunc("/rooms/{roomId}/timers", handler.AddTimer).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{roomId}/timers/{timerId}/control", handler.ControlTimer).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{roomId}/timers/{timerId}", handler.DeleteTimer).Methods(http.MethodDelete)

	r.HandleFunc("/rooms/{roomId}/messages", handler.SendMessage).Methods(http.MethodPost)

	r.HandleFunc("/rooms/{roomId}/agenda", handler.SetAgenda).Methods(http.MethodPut)
	r.HandleFunc("/rooms/{roomId}/agenda", handler.ClearAgenda).Methods(http.MethodDelete)

	r.HandleFunc("/rooms/{roomId}/settings", handler.UpdateSettings).Methods(http.MethodPatch)
}
