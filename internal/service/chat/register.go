package chat

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/noxchat/noxd/internal/app"
	"github.com/noxchat/noxd/internal/report"
	"github.com/noxchat/noxd/internal/session"
)

// Registrar ties the chat service into the HTTP server
type Registrar struct {
	appCtx  *app.Context
	engine  *session.Engine
	reports report.Sink
}

// NewRegistrar creates a new Registrar for the chat service
func NewRegistrar(appCtx *app.Context, engine *session.Engine, reports report.Sink) *Registrar {
	return &Registrar{appCtx: appCtx, engine: engine, reports: reports}
}

// Register attaches the chat endpoints to the router
func (reg *Registrar) Register(r *mux.Router) {
	s := NewService(reg.appCtx, reg.engine, reg.reports)

	r.HandleFunc("/v1/users/{id}", s.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/v1/users/{id}", s.HandleGetUser).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{id}/profile", s.HandleUpdateProfile).Methods(http.MethodPatch)
	r.HandleFunc("/v1/users/{id}/search", s.HandleSearch).Methods(http.MethodPost)
	r.HandleFunc("/v1/users/{id}/stop", s.HandleStop).Methods(http.MethodPost)
	r.HandleFunc("/v1/users/{id}/next", s.HandleNext).Methods(http.MethodPost)
	r.HandleFunc("/v1/users/{id}/relay", s.HandleRelay).Methods(http.MethodPost)
	r.HandleFunc("/v1/users/{id}/reports", s.HandleReport).Methods(http.MethodPost)
	r.HandleFunc("/v1/users/{id}/reactions", s.HandleReaction).Methods(http.MethodPost)
}
