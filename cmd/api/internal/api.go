package internal

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	datafeed "github.com/fazecat/triggerdesk/Internal/database"
	"github.com/fazecat/triggerdesk/Internal/handlers"
	"github.com/fazecat/triggerdesk/Internal/handlers/monitoring"
	"github.com/fazecat/triggerdesk/Internal/strategy"
	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
	"github.com/fazecat/triggerdesk/Internal/utils/scanner"
)

// Store is the read side of the trade store the API exposes.
type Store interface {
	ListTrades(ctx context.Context, status types.TradeStatus) ([]types.Trade, error)
	ListTriggers(ctx context.Context, ticker string, status types.TriggerStatus) ([]types.Trigger, error)
	TradeStats(ctx context.Context, lookbackDays int) (*datafeed.TradeStats, error)
	HealthCheck(ctx context.Context) error
}

type Broker interface {
	IsConnected() bool
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
}

type API struct {
	Store    Store
	Broker   Broker
	Scanner  *scanner.Scanner
	Executor *handlers.TradeExecutor
	Monitor  *monitoring.TriggerMonitor
	JWT      *JWTManager
	Log      *logger.Logger

	AdminKey     string
	UniverseFile string
	ExportDir    string
	MinBearScore float64
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	health, dbStatus := "healthy", "ok"
	status := http.StatusOK
	if err := a.Store.HealthCheck(ctx); err != nil {
		health, dbStatus = "degraded", err.Error()
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, map[string]interface{}{
		"status":           health,
		"database":         dbStatus,
		"broker_connected": a.Broker.IsConnected(),
		"monitor_running":  a.Monitor.Running(),
	})
}

type tokenRequest struct {
	AdminKey string `json:"admin_key" validate:"required"`
	Operator string `json:"operator" default:"desk"`
}

func (a *API) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := bindJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !adminKeyMatches(a.AdminKey, req.AdminKey) {
		WriteError(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	token, expires, err := a.JWT.GenerateToken(req.Operator)
	if err != nil {
		a.Log.Error("token generation failed", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"token": token, "expires_at": expires})
}

// adminKeyMatches compares in constant time. An unset admin key matches nothing.
func adminKeyMatches(want, got string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func (a *API) ListTrades(w http.ResponseWriter, r *http.Request) {
	status := types.TradeStatus(r.URL.Query().Get("status"))
	ticker := strings.ToUpper(r.URL.Query().Get("ticker"))

	trades, err := a.Store.ListTrades(r.Context(), status)
	if err != nil {
		a.Log.Error("list trades", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to list trades")
		return
	}
	trigs, err := a.Store.ListTriggers(r.Context(), ticker, "")
	if err != nil {
		a.Log.Error("list triggers", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to list triggers")
		return
	}

	if ticker != "" {
		filtered := trades[:0]
		for _, t := range trades {
			if t.Ticker == ticker {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}
	WriteJSON(w, http.StatusOK, monitoring.PairTradesWithTriggers(trades, trigs))
}

func (a *API) TradeStats(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	stats, err := a.Store.TradeStats(r.Context(), days)
	if err != nil {
		a.Log.Error("trade stats", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"days":               days,
		"total_trades":       stats.TotalTrades,
		"open_trades":        stats.OpenTrades,
		"winning_trades":     stats.WinningTrades,
		"losing_trades":      stats.LosingTrades,
		"total_pnl":          stats.TotalPnL.StringFixed(2),
		"win_rate":           stats.WinRate,
		"average_trade_size": stats.AverageTradeSize.StringFixed(2),
	})
}

type openTradeRequest struct {
	Ticker    string  `json:"ticker" validate:"required,alphanum,max=10"`
	SetupNote string  `json:"setup_note" validate:"max=200"`
	Units     int64   `json:"units" validate:"required,min=1"`
	BuyPrice  float64 `json:"buy_price" validate:"required,gt=0"`
	StopLoss  float64 `json:"stop_loss" validate:"required,gt=0,ltfield=BuyPrice"`
	R1        float64 `json:"r1" validate:"required,gtfield=BuyPrice"`
	R2        float64 `json:"r2" validate:"omitempty,gtefield=R1"`
	PlaceBuy  bool    `json:"place_buy"`
}

func (a *API) OpenTrade(w http.ResponseWriter, r *http.Request) {
	var req openTradeRequest
	if err := bindJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.Executor.OpenTrade(r.Context(), strategy.TradePlan{
		Ticker:    req.Ticker,
		SetupNote: req.SetupNote,
		Units:     req.Units,
		BuyPrice:  req.BuyPrice,
		StopLoss:  req.StopLoss,
		R1:        req.R1,
		R2:        req.R2,
		PlaceBuy:  req.PlaceBuy,
	})
	switch {
	case errors.Is(err, handlers.ErrInvalidPlan):
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, handlers.ErrBuyRejected), errors.Is(err, datafeed.ErrNotConnected):
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		a.Log.Error("open trade", logger.String("ticker", req.Ticker), logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to open trade")
		return
	}

	a.Log.Info("trade opened via api",
		logger.String("ticker", res.Trade.Ticker),
		logger.Int64("trade_id", res.Trade.ID),
		logger.String("operator", operatorFrom(r.Context())))
	WriteJSON(w, http.StatusCreated, res)
}

func (a *API) ListTriggers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trigs, err := a.Store.ListTriggers(r.Context(), q.Get("ticker"), types.TriggerStatus(q.Get("status")))
	if err != nil {
		a.Log.Error("list triggers", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to list triggers")
		return
	}
	if trigs == nil {
		trigs = []types.Trigger{}
	}
	WriteJSON(w, http.StatusOK, trigs)
}

type actionView struct {
	Kind         string          `json:"kind"`
	Ticker       string          `json:"ticker"`
	TriggerID    int64           `json:"trigger_id,omitempty"`
	TriggerPrice float64         `json:"trigger_price,omitempty"`
	Divide       int             `json:"divide"`
	OrderType    types.OrderType `json:"order_type"`
	Quantity     int64           `json:"quantity"`
	LimitPrice   float64         `json:"limit_price,omitempty"`
	Side         types.OrderSide `json:"side"`
}

func (a *API) PreviewTriggers(w http.ResponseWriter, r *http.Request) {
	actions, err := a.Monitor.Preview(r.Context(), time.Now())
	if errors.Is(err, datafeed.ErrNotConnected) {
		WriteError(w, http.StatusServiceUnavailable, "Broker not connected")
		return
	}
	if err != nil {
		a.Log.Error("preview triggers", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to preview triggers")
		return
	}

	out := make([]actionView, 0, len(actions))
	for _, act := range actions {
		v := actionView{
			Kind:       act.Kind.String(),
			Ticker:     act.Ticker,
			Divide:     act.Divide,
			OrderType:  act.Order.Type,
			Quantity:   act.Order.Quantity,
			LimitPrice: act.Order.LimitPrice,
			Side:       act.Order.Side,
		}
		if act.Trigger != nil {
			v.TriggerID = act.Trigger.ID
			v.TriggerPrice = act.Trigger.Price
		}
		out = append(out, v)
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *API) RunTick(w http.ResponseWriter, r *http.Request) {
	report, err := a.Monitor.RunTick(r.Context(), time.Now())
	if errors.Is(err, monitoring.ErrTickInProgress) {
		WriteError(w, http.StatusConflict, "A tick is already running")
		return
	}
	if err != nil {
		a.Log.Error("manual tick", logger.Error(err))
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

type scanRequest struct {
	UniverseFile string `json:"universe_file"`
}

func (a *API) RunScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := bindJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	path := req.UniverseFile
	if path == "" {
		path = a.UniverseFile
	}

	symbols, err := scanner.LoadUniverse(path)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.Scanner.Run(r.Context(), symbols)
	if err != nil {
		a.Log.Error("scan failed", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Scan failed")
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (a *API) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	minScore := a.MinBearScore
	if v := r.URL.Query().Get("min_bear_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "min_bear_score must be a number")
			return
		}
		minScore = f
	}

	rows, err := a.Scanner.Snapshots(r.Context(), minScore)
	if err != nil {
		a.Log.Error("list snapshots", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to list scan results")
		return
	}
	if rows == nil {
		rows = []types.PatternScore{}
	}
	WriteJSON(w, http.StatusOK, rows)
}

func (a *API) Levels(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	report, err := a.Scanner.Levels(r.Context(), symbol)
	if err != nil {
		a.Log.Warn("levels lookup failed", logger.String("symbol", symbol), logger.Error(err))
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

type exportRequest struct {
	MinBearScore *float64 `json:"min_bear_score" validate:"omitempty,min=0"`
}

func (a *API) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := bindJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	minScore := a.MinBearScore
	if req.MinBearScore != nil {
		minScore = *req.MinBearScore
	}

	rows, err := a.Scanner.Snapshots(r.Context(), minScore)
	if err != nil {
		a.Log.Error("export snapshots", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to read scan results")
		return
	}
	path, err := scanner.ExportShortlist(a.ExportDir, rows, time.Now())
	if err != nil {
		a.Log.Error("export shortlist", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to write shortlist")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"path": path, "rows": len(rows)})
}

type orderRequest struct {
	Ticker       string  `json:"ticker" validate:"required,alphanum,max=10"`
	Side         string  `json:"side" default:"SELL" validate:"oneof=BUY SELL"`
	Type         string  `json:"type" default:"LMT" validate:"oneof=LMT MKT TRAIL"`
	Quantity     int64   `json:"quantity" validate:"required,min=1"`
	LimitPrice   float64 `json:"limit_price" validate:"required_if=Type LMT,gte=0"`
	TrailPercent float64 `json:"trail_percent" validate:"required_if=Type TRAIL,gte=0,lte=100"`
}

func (a *API) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := bindJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.Broker.PlaceOrder(r.Context(), types.OrderRequest{
		Ticker:       strings.ToUpper(req.Ticker),
		Side:         types.OrderSide(req.Side),
		Type:         types.OrderType(req.Type),
		Quantity:     req.Quantity,
		LimitPrice:   req.LimitPrice,
		TrailPercent: req.TrailPercent,
	})
	if errors.Is(err, datafeed.ErrNotConnected) {
		WriteError(w, http.StatusServiceUnavailable, "Broker not connected")
		return
	}
	if err != nil {
		a.Log.Error("manual order", logger.String("ticker", req.Ticker), logger.Error(err))
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	a.Log.Info("manual order placed",
		logger.String("ticker", req.Ticker),
		logger.String("status", string(res.Status)),
		logger.String("operator", operatorFrom(r.Context())))

	status := http.StatusOK
	if !res.Status.Accepted() {
		status = http.StatusBadGateway
	}
	WriteJSON(w, status, map[string]interface{}{
		"order_id":   res.OrderID,
		"status":     res.Status,
		"fill_price": res.FillPrice,
		"filled_qty": res.FilledQty,
	})
}
