package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"aquacore/internal/core"
	"aquacore/internal/export"
	"aquacore/internal/tank"
	"aquacore/pkg/domain"
)

func contextWithUser(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userKey, uid)
}

func userFrom(ctx context.Context) string {
	uid, _ := ctx.Value(userKey).(string)
	return uid
}

func sessionKey(r *http.Request) domain.SessionKey {
	return domain.SessionKey{
		UserID: userFrom(r.Context()),
		TankID: mux.Vars(r)["tank"],
	}
}

// sessionResponse is the wire form of a loaded tank session.
type sessionResponse struct {
	TankID    string              `json:"tankId"`
	Settings  domain.TankSettings `json:"settings"`
	Occupants []domain.TankItem   `json:"occupants"`
}

func toSessionResponse(sess core.Session) sessionResponse {
	occ := sess.Occupants
	if occ == nil {
		occ = []domain.TankItem{}
	}
	return sessionResponse{TankID: sess.Key.TankID, Settings: sess.Settings, Occupants: occ}
}

// pendingWire round-trips a pending fish placement through the client
// between the place and confirm calls.
type pendingWire struct {
	Species    domain.Species `json:"species"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	InstanceID string         `json:"instanceId"`
}

func fromPending(p tank.PendingPlacement) pendingWire {
	return pendingWire{Species: p.Species, X: p.X, Y: p.Y, InstanceID: p.InstanceID}
}

func (p pendingWire) toPending() tank.PendingPlacement {
	return tank.PendingPlacement{Species: p.Species, X: p.X, Y: p.Y, InstanceID: p.InstanceID}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	env := domain.WaterType(r.URL.Query().Get("env"))
	list := s.svc.Catalog(env)
	if list == nil {
		list = []domain.Species{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleTankList(w http.ResponseWriter, r *http.Request) {
	refs, err := s.svc.ListTanks(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if refs == nil {
		refs = []domain.TankRef{}
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleTankCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	id, err := s.svc.CreateTank(r.Context(), userFrom(r.Context()), body.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"tankId": id})
}

func (s *Server) handleTankGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleTankDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTank(r.Context(), sessionKey(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.TankSettings
	if !decodeBody(w, r, &settings) {
		return
	}
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess, err = s.svc.UpdateSettings(r.Context(), sess, settings)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// handleSave is the explicit save-point for navigation and backgrounding:
// it flushes the current document immediately, bypassing the debounce.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.svc.Flush(r.Context(), sess); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SpeciesID string  `json:"speciesId"`
		X         float64 `json:"x"`
		Y         float64 `json:"y"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	sp, ok := s.svc.LookupSpecies(body.SpeciesID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown species "+body.SpeciesID)
		return
	}
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess, pending, err := s.svc.Place(r.Context(), sess, sp, body.X, body.Y)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := struct {
		sessionResponse
		Pending *pendingWire `json:"pending,omitempty"`
	}{sessionResponse: toSessionResponse(sess)}
	if pending != nil {
		pw := fromPending(*pending)
		resp.Pending = &pw
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pending  pendingWire `json:"pending"`
		Nickname string      `json:"nickname"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess, err = s.svc.ConfirmPlacement(r.Context(), sess, body.Pending.toPending(), body.Nickname)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess, moved, err := s.svc.Move(r.Context(), sess, mux.Vars(r)["instance"], body.X, body.Y)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		sessionResponse
		Moved bool `json:"moved"`
	}{toSessionResponse(sess), moved})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nickname string `json:"nickname"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess, err = s.svc.Rename(r.Context(), sess, mux.Vars(r)["instance"], body.Nickname)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess, err = s.svc.Remove(r.Context(), sess, mux.Vars(r)["instance"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// handleTankCatalog lists the species available for the tank's environment,
// each carrying the quick compatibility label against the current occupants.
func (s *Server) handleTankCatalog(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	type labeled struct {
		domain.Species
		Verdict string `json:"verdict"`
	}
	list := s.svc.Catalog(sess.Settings.Env)
	out := make([]labeled, 0, len(list))
	for _, sp := range list {
		eval := s.svc.Evaluate(sess, sp)
		out = append(out, labeled{Species: sp, Verdict: string(eval.Verdict)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCompat(w http.ResponseWriter, r *http.Request) {
	speciesID := r.URL.Query().Get("speciesId")
	sp, ok := s.svc.LookupSpecies(speciesID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown species "+speciesID)
		return
	}
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	eval := s.svc.Evaluate(sess, sp)
	conflicts := eval.Conflicts
	if conflicts == nil {
		conflicts = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		Verdict   string   `json:"verdict"`
		Conflicts []string `json:"conflicts"`
	}{string(eval.Verdict), conflicts})
}

// recommendationWire flattens the envrec types into a stable JSON shape.
type recommendationWire struct {
	Temperature *struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Conflict bool    `json:"conflict"`
	} `json:"temperature,omitempty"`
	Oxygen struct {
		Label string        `json:"label"`
		Range *domain.Range `json:"range,omitempty"`
	} `json:"oxygen"`
	Summary struct {
		SpeciesCount int      `json:"speciesCount"`
		AvgTemp      *float64 `json:"avgTemp,omitempty"`
		AvgPH        *float64 `json:"avgPh,omitempty"`
		OxygenStatus string   `json:"oxygenStatus"`
		AvgPHText    string   `json:"avgPhText"`
	} `json:"summary"`
}

func toRecommendationWire(rec core.Recommendation) recommendationWire {
	var out recommendationWire
	if rec.Temperature != nil {
		out.Temperature = &struct {
			Min      float64 `json:"min"`
			Max      float64 `json:"max"`
			Conflict bool    `json:"conflict"`
		}{rec.Temperature.Min, rec.Temperature.Max, rec.Temperature.Conflict}
	}
	out.Oxygen.Label = string(rec.Oxygen.Label)
	out.Oxygen.Range = rec.Oxygen.Range
	out.Summary.SpeciesCount = rec.Summary.SpeciesCount
	out.Summary.AvgTemp = rec.Summary.AvgTemp
	out.Summary.AvgPH = rec.Summary.AvgPH
	out.Summary.OxygenStatus = string(rec.Summary.OxygenStatus)
	out.Summary.AvgPHText = tank.FormatAvgPH(rec.Summary)
	return out
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecommendationWire(s.svc.Recommend(sess)))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Load(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Snapshot(sess))
}

const maxPreviewBytes = 8 << 20

func (s *Server) handlePreviewPut(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPreviewBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "read body: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "empty preview body")
		return
	}
	if len(data) > maxPreviewBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "preview exceeds size limit")
		return
	}
	uri, err := s.svc.SavePreview(r.Context(), sessionKey(r), data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"previewUri": uri})
}

func (s *Server) handlePreviewGet(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.LoadPreview(r.Context(), sessionKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", `attachment; filename="tanks.aqz"`)
	if err := export.Write(r.Context(), s.svc.Store(), userFrom(r.Context()), w); err != nil {
		// Headers are already out; all we can do is log.
		s.log.Error("export failed", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	arch, err := export.Read(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "decode archive: "+err.Error())
		return
	}
	if err := export.Restore(r.Context(), s.svc.Store(), userFrom(r.Context()), arch); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"restored": len(arch.Tanks)})
}
