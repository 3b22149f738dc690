package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"aquacore/internal/cache"
	"aquacore/internal/core"
	blobmem "aquacore/internal/infra/blob/memory"
	storemem "aquacore/internal/infra/persistence/memory"
	"aquacore/internal/preview"
	"aquacore/internal/tank"
	"aquacore/pkg/domain"
)

func testCatalog() []domain.Species {
	return []domain.Species{
		{ID: "betta1", Name: "Betta", Kind: domain.KindFish, WaterType: domain.Freshwater,
			AssetKey: "betta", TempRange: &domain.Range{Min: 24, Max: 28}},
		{ID: "fern1", Name: "Java Fern", Kind: domain.KindPlant, WaterType: domain.Freshwater,
			AssetKey: "java-fern"},
		{ID: "tang1", Name: "Blue Tang", Kind: domain.KindFish, WaterType: domain.Saltwater,
			AssetKey: "blue-tang"},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := storemem.NewStore()
	c, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	svc := core.NewService(store, core.Options{
		Catalog:  testCatalog(),
		Bounds:   tank.Bounds{Width: 300, Height: 200},
		Cache:    c,
		Previews: preview.NewManager(blobmem.New(), store),
	})
	srv := httptest.NewServer(New(svc, nil).Router())
	t.Cleanup(func() {
		srv.Close()
		svc.Close()
	})
	return srv
}

// do issues a request with the test user identity and decodes the JSON
// response into out when out is non-nil.
func do(t *testing.T, method, url string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-User-ID", "u1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestRequiresUserHeader(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/tanks")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	var eb errorBody
	if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if eb.Error.Code != "unauthenticated" {
		t.Fatalf("code = %q", eb.Error.Code)
	}
}

func TestHealthAndMetricsNeedNoAuth(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestCatalogFilter(t *testing.T) {
	srv := newTestServer(t)
	var all []domain.Species
	if code := do(t, http.MethodGet, srv.URL+"/api/catalog", nil, &all); code != 200 {
		t.Fatalf("status = %d", code)
	}
	if len(all) != 3 {
		t.Fatalf("catalog = %d entries", len(all))
	}
	var salt []domain.Species
	do(t, http.MethodGet, srv.URL+"/api/catalog?env=saltwater", nil, &salt)
	if len(salt) != 1 || salt[0].ID != "tang1" {
		t.Fatalf("salt = %+v", salt)
	}
}

func TestTankCatalogCarriesVerdicts(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/tanks/t1"

	var placed struct {
		sessionResponse
		Pending *pendingWire `json:"pending"`
	}
	do(t, http.MethodPost, base+"/occupants", map[string]any{"speciesId": "betta", "x": 10, "y": 10}, &placed)
	var sess sessionResponse
	do(t, http.MethodPost, base+"/occupants/confirm", map[string]any{"pending": placed.Pending, "nickname": ""}, &sess)

	var list []struct {
		domain.Species
		Verdict string `json:"verdict"`
	}
	do(t, http.MethodGet, base+"/catalog", nil, &list)
	// Freshwater tank: betta and the fern, with the betta marked Avoid
	// because one is already placed.
	if len(list) != 2 {
		t.Fatalf("catalog = %+v", list)
	}
	verdicts := map[string]string{}
	for _, e := range list {
		verdicts[e.ID] = e.Verdict
	}
	if verdicts["betta1"] != "Avoid" || verdicts["fern1"] != "Good" {
		t.Fatalf("verdicts = %+v", verdicts)
	}
}

func TestTankLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var created struct {
		TankID string `json:"tankId"`
	}
	if code := do(t, http.MethodPost, srv.URL+"/api/tanks", map[string]string{"name": "Main"}, &created); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if created.TankID == "" {
		t.Fatalf("empty tank id")
	}
	base := srv.URL + "/api/tanks/" + created.TankID

	var refs []domain.TankRef
	do(t, http.MethodGet, srv.URL+"/api/tanks", nil, &refs)
	if len(refs) != 1 || refs[0].Name != "Main" {
		t.Fatalf("refs = %+v", refs)
	}

	var sess sessionResponse
	do(t, http.MethodGet, base, nil, &sess)
	if sess.Settings.Env != domain.Freshwater || len(sess.Occupants) != 0 {
		t.Fatalf("fresh session = %+v", sess)
	}

	// Place a fish: pending until confirmed.
	var placed struct {
		sessionResponse
		Pending *pendingWire `json:"pending"`
	}
	do(t, http.MethodPost, base+"/occupants", map[string]any{"speciesId": "betta", "x": 50, "y": 60}, &placed)
	if placed.Pending == nil {
		t.Fatalf("no pending placement returned")
	}
	do(t, http.MethodPost, base+"/occupants/confirm", map[string]any{"pending": placed.Pending, "nickname": "Bubbles"}, &sess)
	if len(sess.Occupants) != 1 || sess.Occupants[0].Nickname != "Bubbles" {
		t.Fatalf("after confirm = %+v", sess.Occupants)
	}
	instance := sess.Occupants[0].InstanceID

	var moved struct {
		sessionResponse
		Moved bool `json:"moved"`
	}
	do(t, http.MethodPatch, base+"/occupants/"+instance+"/position", map[string]any{"x": 90, "y": 40}, &moved)
	if !moved.Moved || moved.Occupants[0].X != 90 {
		t.Fatalf("move = %+v", moved)
	}

	do(t, http.MethodPatch, base+"/occupants/"+instance+"/nickname", map[string]any{"nickname": "Finn"}, &sess)
	if sess.Occupants[0].Nickname != "Finn" {
		t.Fatalf("rename = %+v", sess.Occupants)
	}

	if code := do(t, http.MethodDelete, base+"/occupants/"+instance, nil, &sess); code != 200 {
		t.Fatalf("remove status = %d", code)
	}
	if len(sess.Occupants) != 0 {
		t.Fatalf("after remove = %+v", sess.Occupants)
	}

	if code := do(t, http.MethodDelete, base, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete status = %d", code)
	}
}

func TestMoveUnknownOccupantIs404(t *testing.T) {
	srv := newTestServer(t)
	var eb errorBody
	code := do(t, http.MethodPatch, srv.URL+"/api/tanks/t1/occupants/nope/position", map[string]any{"x": 1, "y": 1}, &eb)
	if code != http.StatusNotFound || eb.Error.Code != "not_found" {
		t.Fatalf("status = %d body = %+v", code, eb)
	}
}

func TestCompatEndpoint(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/tanks/t1"

	var placed struct {
		sessionResponse
		Pending *pendingWire `json:"pending"`
	}
	do(t, http.MethodPost, base+"/occupants", map[string]any{"speciesId": "betta", "x": 10, "y": 10}, &placed)
	var sess sessionResponse
	do(t, http.MethodPost, base+"/occupants/confirm", map[string]any{"pending": placed.Pending, "nickname": ""}, &sess)

	var eval struct {
		Verdict   string   `json:"verdict"`
		Conflicts []string `json:"conflicts"`
	}
	do(t, http.MethodGet, base+"/compat?speciesId=betta", nil, &eval)
	if eval.Verdict != "Avoid" || len(eval.Conflicts) == 0 {
		t.Fatalf("eval = %+v", eval)
	}
	if !strings.Contains(eval.Conflicts[0], "another Betta") {
		t.Fatalf("conflict = %q", eval.Conflicts[0])
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/tanks/t1"

	var placed struct {
		sessionResponse
		Pending *pendingWire `json:"pending"`
	}
	do(t, http.MethodPost, base+"/occupants", map[string]any{"speciesId": "betta", "x": 10, "y": 10}, &placed)
	var sess sessionResponse
	do(t, http.MethodPost, base+"/occupants/confirm", map[string]any{"pending": placed.Pending, "nickname": ""}, &sess)

	var rec recommendationWire
	do(t, http.MethodGet, base+"/recommendations", nil, &rec)
	if rec.Temperature == nil || rec.Temperature.Min != 24 || rec.Temperature.Max != 28 {
		t.Fatalf("temperature = %+v", rec.Temperature)
	}
	if rec.Summary.SpeciesCount != 1 || rec.Summary.AvgPHText != "No pH data" {
		t.Fatalf("summary = %+v", rec.Summary)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	srv := newTestServer(t)
	var snap domain.TankSnapshot
	do(t, http.MethodGet, srv.URL+"/api/tanks/t1/snapshot", nil, &snap)
	if snap.Env != domain.Freshwater || snap.SpeciesCount != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestPreviewRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/tanks/t1/preview"

	req, _ := http.NewRequest(http.MethodPut, base, bytes.NewReader([]byte("png-bytes")))
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Content-Type", "image/png")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	var put struct {
		PreviewURI string `json:"previewUri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&put); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 || put.PreviewURI == "" {
		t.Fatalf("put status = %d uri = %q", resp.StatusCode, put.PreviewURI)
	}

	req, _ = http.NewRequest(http.MethodGet, base, nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(data) != "png-bytes" {
		t.Fatalf("get status = %d body = %q", resp.StatusCode, data)
	}
}

func TestPreviewMissingIs404(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/tanks/t1/preview", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	var created struct {
		TankID string `json:"tankId"`
	}
	do(t, http.MethodPost, srv.URL+"/api/tanks", map[string]string{"name": "Keep"}, &created)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/export", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	archive, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || len(archive) == 0 {
		t.Fatalf("export status = %d, %d bytes", resp.StatusCode, len(archive))
	}

	// Import under a different user, then list as that user.
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/api/import", bytes.NewReader(archive))
	req.Header.Set("X-User-ID", "u2")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	var restored struct {
		Restored int `json:"restored"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&restored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if restored.Restored != 1 {
		t.Fatalf("restored = %d", restored.Restored)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/tanks", nil)
	req.Header.Set("X-User-ID", "u2")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var refs []domain.TankRef
	if err := json.NewDecoder(resp.Body).Decode(&refs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if len(refs) != 1 || refs[0].Name != "Keep" {
		t.Fatalf("refs = %+v", refs)
	}
}

func TestWatchStreamsWrites(t *testing.T) {
	srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/tanks/t1/watch"
	header := http.Header{"X-User-ID": []string{"u1"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v (resp %v)", err, resp)
	}
	defer conn.Close()

	var sess sessionResponse
	do(t, http.MethodPost, srv.URL+"/api/tanks/t1/occupants", map[string]any{"speciesId": "java-fern", "x": 5, "y": 5}, &sess)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev watchEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.TankID != "t1" || ev.Deleted || ev.Doc == nil {
		t.Fatalf("event = %+v", ev)
	}
	if _, ok := ev.Doc["items"]; !ok {
		t.Fatalf("event doc = %v", ev.Doc)
	}
}

func TestUnknownSpeciesOnPlaceIs404(t *testing.T) {
	srv := newTestServer(t)
	var eb errorBody
	code := do(t, http.MethodPost, srv.URL+"/api/tanks/t1/occupants", map[string]any{"speciesId": "ghost", "x": 1, "y": 1}, &eb)
	if code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(eb.Error.Message, "ghost") {
		t.Fatalf("message = %q", eb.Error.Message)
	}
}

func TestBadJSONBodyIs400(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/tanks", strings.NewReader("{"))
	req.Header.Set("X-User-ID", "u1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
