package adminapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/noxchat/noxd/internal/admin"
	"github.com/noxchat/noxd/internal/app"
	"github.com/noxchat/noxd/internal/report"
)

// Registrar ties the admin service into the HTTP server
type Registrar struct {
	appCtx  *app.Context
	admins  *admin.Service
	reports report.Sink
}

// NewRegistrar creates a new Registrar for the admin service
func NewRegistrar(appCtx *app.Context, admins *admin.Service, reports report.Sink) *Registrar {
	return &Registrar{appCtx: appCtx, admins: admins, reports: reports}
}

// Register attaches the admin endpoints to the router
func (reg *Registrar) Register(r *mux.Router) {
	s := NewService(reg.appCtx, reg.admins, reg.reports)

	r.HandleFunc("/v1/admin/stats", s.HandleStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/users", s.HandleListUsers).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/user", s.HandleGetUser).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/searching", s.HandleListSearching).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/dialogs", s.HandleListDialogs).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/blocked", s.HandleListBlocked).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/admins", s.HandleListAdmins).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/reports", s.HandleListReports).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/export.csv", s.HandleExport).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/pair", s.HandleForcePair).Methods(http.MethodPost)
	r.HandleFunc("/v1/admin/unpair", s.HandleForceUnpair).Methods(http.MethodPost)
	r.HandleFunc("/v1/admin/block", s.HandleSetBlocked).Methods(http.MethodPost)
	r.HandleFunc("/v1/admin/promote", s.HandleSetAdmin).Methods(http.MethodPost)
}
