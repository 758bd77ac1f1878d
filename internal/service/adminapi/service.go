// Package adminapi exposes the administrator surface over HTTP. The acting
// admin is identified by the X-Actor-ID header set by the authenticated
// boundary; authorization itself happens in the admin service and fails
// closed.
package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/noxchat/noxd/internal/admin"
	"github.com/noxchat/noxd/internal/app"
	"github.com/noxchat/noxd/internal/apperr"
	"github.com/noxchat/noxd/internal/report"
)

const reportListLimit = 50

type Service struct {
	appCtx  *app.Context
	admins  *admin.Service
	reports report.Sink
}

func NewService(appCtx *app.Context, admins *admin.Service, reports report.Sink) *Service {
	return &Service{appCtx: appCtx, admins: admins, reports: reports}
}

func (s *Service) HandleStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	stats, err := s.admins.Stats(r.Context(), actor)
	if err != nil {
		s.fail(w, "stats failed", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Service) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	users, err := s.admins.ListUsers(r.Context(), actor)
	if err != nil {
		s.fail(w, "list users failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Service) HandleListSearching(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	ids, err := s.admins.ListSearching(r.Context(), actor)
	if err != nil {
		s.fail(w, "list searching failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_ids": ids})
}

func (s *Service) HandleListDialogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	pairs, err := s.admins.ListDialogPairs(r.Context(), actor)
	if err != nil {
		s.fail(w, "list dialogs failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dialogs": pairs})
}

func (s *Service) HandleListBlocked(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	users, err := s.admins.ListBlocked(r.Context(), actor)
	if err != nil {
		s.fail(w, "list blocked failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Service) HandleListAdmins(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	ids, err := s.admins.ListAdmins(r.Context(), actor)
	if err != nil {
		s.fail(w, "list admins failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_ids": ids})
}

func (s *Service) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid int64")
		return
	}
	user, err := s.admins.GetUser(r.Context(), actor, id)
	if err != nil {
		s.fail(w, "get user failed", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Service) HandleForcePair(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var body struct {
		A int64 `json:"a"`
		B int64 `json:"b"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.A == 0 || body.B == 0 || body.A == body.B {
		writeError(w, http.StatusBadRequest, "a and b must be two distinct user ids")
		return
	}

	if err := s.admins.ForcePair(r.Context(), actor, body.A, body.B); err != nil {
		s.fail(w, "force pair failed", err)
		return
	}
	s.appCtx.Logger.Info("force pair", "actor", actor, "a", body.A, "b", body.B)
	writeJSON(w, http.StatusOK, map[string]any{"paired": true})
}

func (s *Service) HandleForceUnpair(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var body struct {
		UserID int64 `json:"user_id"`
	}
	if !decode(w, r, &body) {
		return
	}

	former, had, err := s.admins.ForceUnpair(r.Context(), actor, body.UserID)
	if err != nil {
		s.fail(w, "force unpair failed", err)
		return
	}
	resp := map[string]any{"ended": had}
	if had {
		resp["former_partner_id"] = former
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) HandleSetBlocked(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var body struct {
		UserID  int64 `json:"user_id"`
		Blocked bool  `json:"blocked"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := s.admins.SetBlocked(r.Context(), actor, body.UserID, body.Blocked); err != nil {
		s.fail(w, "set blocked failed", err)
		return
	}
	s.appCtx.Logger.Info("set blocked", "actor", actor, "user", body.UserID, "blocked", body.Blocked)
	writeJSON(w, http.StatusOK, map[string]any{"blocked": body.Blocked})
}

func (s *Service) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var body struct {
		UserID  int64 `json:"user_id"`
		IsAdmin bool  `json:"is_admin"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := s.admins.SetAdmin(r.Context(), actor, body.UserID, body.IsAdmin); err != nil {
		s.fail(w, "set admin failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_admin": body.IsAdmin})
}

func (s *Service) HandleListReports(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	if !s.admins.IsAuthorized(r.Context(), actor) {
		s.fail(w, "list reports failed", apperr.ErrForbidden)
		return
	}
	reports, err := s.reports.ListRecent(r.Context(), reportListLimit)
	if err != nil {
		s.fail(w, "list reports failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// HandleExport streams the user table as a CSV attachment.
func (s *Service) HandleExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	if !s.admins.IsAuthorized(r.Context(), actor) {
		s.fail(w, "export failed", apperr.ErrForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="export_users.csv"`)
	if err := s.admins.ExportCSV(r.Context(), actor, w); err != nil {
		s.appCtx.Logger.Error("csv export failed", "err", err)
	}
}

// --- helpers ---

func (s *Service) fail(w http.ResponseWriter, msg string, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		s.appCtx.Logger.Error(msg, "err", err)
	}
	writeError(w, status, err.Error())
}

// actorID reads the acting admin's id from the X-Actor-ID header.
func actorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "X-Actor-ID header must be a valid int64")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
