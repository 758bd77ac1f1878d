// Package chat exposes the user-facing actions over HTTP: register, search,
// stop, next, relay, profile updates, reports, and reactions. The transport
// in front of this API has already authenticated the user; the id in the
// path is trusted.
package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/noxchat/noxd/internal/app"
	"github.com/noxchat/noxd/internal/apperr"
	"github.com/noxchat/noxd/internal/directory"
	"github.com/noxchat/noxd/internal/notify"
	"github.com/noxchat/noxd/internal/report"
	"github.com/noxchat/noxd/internal/session"
)

// Service handles the user-action endpoints.
type Service struct {
	appCtx  *app.Context
	engine  *session.Engine
	reports report.Sink
}

func NewService(appCtx *app.Context, engine *session.Engine, reports report.Sink) *Service {
	return &Service{appCtx: appCtx, engine: engine, reports: reports}
}

// userView is the wire shape of a Directory record.
type userView struct {
	ID            int64  `json:"id"`
	Handle        string `json:"handle,omitempty"`
	RegisteredAt  string `json:"registered_at"`
	InSearch      bool   `json:"in_search"`
	PartnerID     *int64 `json:"partner_id,omitempty"`
	Blocked       bool   `json:"blocked"`
	IsAdmin       bool   `json:"is_admin"`
	Gender        string `json:"gender,omitempty"`
	SeekingGender string `json:"seeking_gender,omitempty"`
	Age           int    `json:"age,omitempty"`
	Interests     string `json:"interests,omitempty"`
	State         string `json:"state"`
}

func toView(u *directory.User) userView {
	return userView{
		ID:            u.ID,
		Handle:        u.Handle,
		RegisteredAt:  u.RegisteredAt.UTC().Format(time.RFC3339),
		InSearch:      u.InSearch,
		PartnerID:     u.PartnerID,
		Blocked:       u.Blocked,
		IsAdmin:       u.IsAdmin,
		Gender:        string(u.Gender),
		SeekingGender: string(u.SeekingGender),
		Age:           u.Age,
		Interests:     u.Interests,
		State:         string(session.StateOf(u)),
	}
}

// HandleRegister creates the user on first contact, refreshing the handle
// on repeat calls.
func (s *Service) HandleRegister(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Handle string `json:"handle"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := s.engine.Register(r.Context(), id, body.Handle); err != nil {
		s.fail(w, "register failed", err)
		return
	}
	user, err := s.appCtx.Directory.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, "register readback failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toView(user))
}

func (s *Service) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := s.appCtx.Directory.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, "get user failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toView(user))
}

func (s *Service) HandleSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.appCtx.Logger.Debug("search requested", "user", id)

	partner, matched, err := s.engine.Search(r.Context(), id)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}

	resp := map[string]any{"matched": matched}
	if matched {
		resp["partner_id"] = partner
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) HandleStop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	former, had, err := s.engine.Stop(r.Context(), id)
	if err != nil {
		s.fail(w, "stop failed", err)
		return
	}

	// stopping without a dialog is a no-op success
	resp := map[string]any{"ended": had}
	if had {
		resp["former_partner_id"] = former
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) HandleNext(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := s.engine.Next(r.Context(), id)
	if err != nil {
		s.fail(w, "next failed", err)
		return
	}

	resp := map[string]any{"ended": res.HadPartner, "matched": res.Matched}
	if res.HadPartner {
		resp["former_partner_id"] = res.FormerPartner
	}
	if res.Matched {
		resp["partner_id"] = res.Partner
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRelay forwards one payload to the sender's partner. Delivery
// problems come back as a structured failure, not an HTTP error: the session
// survives them.
func (s *Service) HandleRelay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload notify.Payload
	if !decode(w, r, &payload) {
		return
	}
	if !payload.Valid() {
		writeError(w, http.StatusBadRequest, "unknown or incomplete payload kind")
		return
	}

	err := s.engine.Relay(r.Context(), id, payload)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"delivered": true})
	case errors.Is(err, apperr.ErrNoPartner):
		writeJSON(w, http.StatusOK, map[string]any{"delivered": false, "reason": "no_partner"})
	case errors.Is(err, apperr.ErrDeliveryFailed):
		writeJSON(w, http.StatusOK, map[string]any{"delivered": false, "reason": "delivery_failed"})
	default:
		s.fail(w, "relay failed", err)
	}
}

// HandleUpdateProfile applies a partial profile update; omitted fields stay
// untouched.
func (s *Service) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Gender        *string `json:"gender"`
		SeekingGender *string `json:"seeking_gender"`
		Age           *int    `json:"age"`
		Interests     *string `json:"interests"`
		Phone         *string `json:"phone"`
	}
	if !decode(w, r, &body) {
		return
	}

	upd := directory.ProfileUpdate{Age: body.Age, Interests: body.Interests, Phone: body.Phone}
	if body.Gender != nil {
		g := directory.Gender(*body.Gender)
		if !validGender(g) {
			writeError(w, http.StatusBadRequest, "gender must be male or female")
			return
		}
		upd.Gender = &g
	}
	if body.SeekingGender != nil {
		g := directory.Gender(*body.SeekingGender)
		if !validGender(g) && g != directory.GenderUnset {
			writeError(w, http.StatusBadRequest, "seeking_gender must be male, female, or empty for any")
			return
		}
		upd.SeekingGender = &g
	}

	if err := s.appCtx.Directory.UpdateProfile(r.Context(), id, upd); err != nil {
		s.fail(w, "profile update failed", err)
		return
	}
	user, err := s.appCtx.Directory.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, "profile readback failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toView(user))
}

func (s *Service) HandleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason report.Reason `json:"reason"`
		Detail string        `json:"detail"`
	}
	if !decode(w, r, &body) {
		return
	}
	if !report.ValidReason(body.Reason) {
		writeError(w, http.StatusBadRequest, "unknown report reason")
		return
	}

	reportID, err := s.reports.File(r.Context(), id, body.Reason, body.Detail)
	if err != nil {
		s.fail(w, "report failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": reportID})
}

func (s *Service) HandleReaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		PartnerID int64               `json:"partner_id"`
		Kind      report.ReactionKind `json:"kind"`
	}
	if !decode(w, r, &body) {
		return
	}
	if !report.ValidReaction(body.Kind) {
		writeError(w, http.StatusBadRequest, "reaction must be like or dislike")
		return
	}

	if err := s.reports.React(r.Context(), id, body.PartnerID, body.Kind); err != nil {
		s.fail(w, "reaction failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": true})
}

// --- helpers ---

func (s *Service) fail(w http.ResponseWriter, msg string, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		s.appCtx.Logger.Error(msg, "err", err)
	}
	writeError(w, status, err.Error())
}

func validGender(g directory.Gender) bool {
	return g == directory.GenderMale || g == directory.GenderFemale
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid int64")
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
