package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/ingest"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/bakeplan/bakeplan/internal/modules/metrics"
	"github.com/bakeplan/bakeplan/internal/modules/ovens"
	"github.com/bakeplan/bakeplan/internal/modules/planning"
	"github.com/bakeplan/bakeplan/internal/modules/products"
	"github.com/bakeplan/bakeplan/internal/modules/stockout"
	"github.com/bakeplan/bakeplan/internal/modules/trays"
	"github.com/bakeplan/bakeplan/internal/modules/weights"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers is the thin JSON adapter over the services. No planning logic
// lives here.
type Handlers struct {
	ingest    *ingest.Service
	planning  *planning.Service
	trays     *trays.Scheduler
	history   *history.Service
	products  *products.Repository
	stockouts *stockout.Repository
	detector  *stockout.Detector
	weights   *weights.Repository
	metrics   *metrics.Service
	ovens     *ovens.Repository
	settings  *ovens.SettingsRepository
	log       zerolog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(
	ing *ingest.Service,
	plan *planning.Service,
	traySched *trays.Scheduler,
	hist *history.Service,
	prod *products.Repository,
	stockRepo *stockout.Repository,
	detector *stockout.Detector,
	weightRepo *weights.Repository,
	metricsSvc *metrics.Service,
	ovenRepo *ovens.Repository,
	settingsRepo *ovens.SettingsRepository,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		ingest:    ing,
		planning:  plan,
		trays:     traySched,
		history:   hist,
		products:  prod,
		stockouts: stockRepo,
		detector:  detector,
		weights:   weightRepo,
		metrics:   metricsSvc,
		ovens:     ovenRepo,
		settings:  settingsRepo,
		log:       log.With().Str("component", "handlers").Logger(),
	}
}

// HandleIngestSales accepts normalized sales rows for one dataset.
// POST /api/ingest/sales
func (h *Handlers) HandleIngestSales(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dataset string            `json:"dataset"`
		Rows    []ingest.SalesRow `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dataset := history.Dataset(req.Dataset)
	if dataset == "" {
		dataset = history.DatasetCurrent
	}
	if dataset != history.DatasetCurrent && dataset != history.DatasetPrior {
		respondError(w, http.StatusBadRequest, "dataset must be current or prior")
		return
	}

	res, err := h.ingest.IngestSales(dataset, req.Rows)
	if err != nil {
		h.log.Error().Err(err).Msg("Sales ingestion failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleIngestWaste accepts normalized waste rows.
// POST /api/ingest/waste
func (h *Handlers) HandleIngestWaste(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows []ingest.WasteRow `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.ingest.IngestWaste(req.Rows)
	if err != nil {
		h.log.Error().Err(err).Msg("Waste ingestion failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleGetPlan returns the stored plan for a date.
// GET /api/plans/{date}
func (h *Handlers) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	plan, err := h.planning.Plan(date.Format(domain.DateKey))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if plan == nil {
		respondError(w, http.StatusNotFound, "no plan for date")
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// HandleGeneratePlan regenerates the full three-wave plan for a date.
// POST /api/plans/{date}/generate
func (h *Handlers) HandleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	plan, err := h.planning.GenerateDailyPlan(date)
	if err != nil {
		h.log.Error().Err(err).Str("date", date.Format(domain.DateKey)).Msg("Plan generation failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// HandleRegenerateWave re-plans one wave with the static algorithm.
// POST /api/plans/{date}/waves/{wave}/regenerate
func (h *Handlers) HandleRegenerateWave(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	wave, ok := waveParam(w, r)
	if !ok {
		return
	}

	plan, err := h.planning.RegenerateWave(date, wave)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// HandleAdaptWave re-plans wave 2 or 3 from realized sales in the body.
// POST /api/plans/{date}/waves/{wave}/adapt
func (h *Handlers) HandleAdaptWave(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	wave, ok := waveParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Actuals map[string]float64 `json:"actuals"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var plan *domain.DailyPlan
	var err error
	switch wave {
	case domain.WaveMidday:
		plan, err = h.planning.AdaptWave2(date, req.Actuals)
	case domain.WaveEvening:
		plan, err = h.planning.AdaptWave3(date, req.Actuals)
	default:
		respondError(w, http.StatusBadRequest, "only waves 2 and 3 can be adapted")
		return
	}
	if errors.Is(err, planning.ErrWaveNotGenerated) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// HandleTraySchedule returns the oven batch schedule for one wave.
// GET /api/plans/{date}/waves/{wave}/trays
func (h *Handlers) HandleTraySchedule(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	wave, ok := waveParam(w, r)
	if !ok {
		return
	}

	plan, err := h.planning.Plan(date.Format(domain.DateKey))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if plan == nil || len(plan.Waves[wave]) == 0 {
		respondError(w, http.StatusNotFound, "wave not planned")
		return
	}

	catalog, err := h.products.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	bySKU := make(map[string]domain.Product, len(catalog))
	for _, p := range catalog {
		bySKU[p.SKU] = p
	}

	batches, err := h.trays.Schedule(h.history.Index(), plan.Waves[wave], bySKU, time.Now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    plan.Date,
		"wave":    wave,
		"batches": batches,
	})
}

// HandleListStockouts returns recent stockout events.
// GET /api/stockouts?days=28
func (h *Handlers) HandleListStockouts(w http.ResponseWriter, r *http.Request) {
	days := 28
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	events, err := h.stockouts.Recent(time.Now(), days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"days":   days,
		"events": events,
	})
}

// HandleScanStockouts runs the detector immediately.
// POST /api/stockouts/scan
func (h *Handlers) HandleScanStockouts(w http.ResponseWriter, r *http.Request) {
	events, err := h.detector.Scan(h.history.Index(), time.Now(), 7)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"detected": len(events),
		"events":   events,
	})
}

// HandleGetWeights returns a SKU's blend weights (defaults if never tuned).
// GET /api/weights/{sku}
func (h *Handlers) HandleGetWeights(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	wts, err := h.weights.Get(sku)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sku":     sku,
		"weights": wts,
	})
}

// HandleResetWeights resets a SKU to the default weights.
// DELETE /api/weights/{sku}
func (h *Handlers) HandleResetWeights(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	if err := h.weights.Reset(sku); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sku":     sku,
		"weights": weights.Defaults(),
	})
}

// HandleCorrection applies a manager correction to one plan entry.
// POST /api/corrections
func (h *Handlers) HandleCorrection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date     string `json:"date"`
		Wave     int    `json:"wave"`
		SKU      string `json:"sku"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Wave < domain.WaveMorning || req.Wave > domain.WaveEvening {
		respondError(w, http.StatusBadRequest, "wave must be 1, 2, or 3")
		return
	}

	correction, err := h.planning.ApplyCorrection(req.Date, req.Wave, req.SKU, req.Quantity)
	if errors.Is(err, planning.ErrNoPlan) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, correction)
}

// HandleRecordActuals stores one date's realized sales and waste and
// refreshes that date's accuracy metrics.
// POST /api/actuals/{date}
func (h *Handlers) HandleRecordActuals(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	dateStr := date.Format(domain.DateKey)

	var req struct {
		Sales map[string]float64 `json:"sales"`
		Waste map[string]float64 `json:"waste"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.planning.RecordActuals(dateStr, req.Sales, req.Waste); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.metrics.RecordDay(dateStr); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":  dateStr,
		"sales": len(req.Sales),
		"waste": len(req.Waste),
	})
}

// HandleMetricsReport returns one date's accuracy rows.
// GET /api/metrics/{date}
func (h *Handlers) HandleMetricsReport(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	rows, err := h.metrics.Report(date.Format(domain.DateKey))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date": date.Format(domain.DateKey),
		"rows": rows,
	})
}

// HandleGetOvenLayout returns the configured per-oven tray capacities.
// GET /api/config/ovens/layout
func (h *Handlers) HandleGetOvenLayout(w http.ResponseWriter, r *http.Request) {
	capacities, err := h.ovens.Capacities()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"capacities": capacities})
}

// HandleSetOvenLayout replaces the oven layout.
// PUT /api/config/ovens/layout
func (h *Handlers) HandleSetOvenLayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Capacities []int `json:"capacities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, c := range req.Capacities {
		if c < 1 {
			respondError(w, http.StatusBadRequest, "capacities must be positive")
			return
		}
	}
	if err := h.ovens.SetOvenLayout(req.Capacities); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"capacities": req.Capacities})
}

// HandleSetOvenProduct assigns a SKU to a baking program and tray capacity.
// PUT /api/config/ovens/products
func (h *Handlers) HandleSetOvenProduct(w http.ResponseWriter, r *http.Request) {
	var cfg ovens.ProductConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cfg.SKU == "" || cfg.Program < 1 || cfg.UnitsPerTray < 1 {
		respondError(w, http.StatusBadRequest, "sku, program, and units_per_tray are required")
		return
	}
	if err := h.ovens.SetProductConfig(cfg); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// HandleSetOvenProgram upserts a baking program.
// PUT /api/config/ovens/programs
func (h *Handlers) HandleSetOvenProgram(w http.ResponseWriter, r *http.Request) {
	var p ovens.Program
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Program < 1 || p.DurationMinutes < 1 {
		respondError(w, http.StatusBadRequest, "program and duration_minutes are required")
		return
	}
	if err := h.ovens.SetProgram(p); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// HandleGetSetting returns one operator setting.
// GET /api/config/settings/{key}
func (h *Handlers) HandleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := h.settings.Get(key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if value == nil {
		respondError(w, http.StatusNotFound, "setting not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"key": key, "value": *value})
}

// HandleSetSetting upserts one operator setting.
// PUT /api/config/settings/{key}
func (h *Handlers) HandleSetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Value       string `json:"value"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.settings.Set(key, req.Value, req.Description); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

func dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := time.Parse(domain.DateKey, chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func waveParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	wave, err := strconv.Atoi(chi.URLParam(r, "wave"))
	if err != nil || wave < domain.WaveMorning || wave > domain.WaveEvening {
		respondError(w, http.StatusBadRequest, "wave must be 1, 2, or 3")
		return 0, false
	}
	return wave, true
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
