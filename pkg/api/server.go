package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"orderbookd/pkg/engine"
	"orderbookd/pkg/service"
)

// Server owns the REST and WebSocket transport. It validates requests and
// shapes responses; all matching semantics live behind the order service.
type Server struct {
	svc    *service.OrderService
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger

	httpSrv   *http.Server
	hubCancel context.CancelFunc
}

func NewServer(svc *service.OrderService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		router: mux.NewRouter(),
		hub:    NewHub(logger.Sugar()),
		log:    logger.Sugar(),
	}
	s.setupRoutes()

	// Live updates flow service → server → hub.
	svc.OnTrade = s.BroadcastTrade
	svc.OnBookUpdate = s.BroadcastOrderbook

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/order", s.handlePlaceOrder).Methods("POST")
	s.router.HandleFunc("/cancel", s.handleCancelOrder).Methods("POST")
	s.router.HandleFunc("/snapshot", s.handleSnapshot).Methods("GET")
	s.router.HandleFunc("/trades", s.handleTrades).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Start blocks serving HTTP until Shutdown is called or the listener
// fails.
func (s *Server) Start(addr string) error {
	hubCtx, cancel := context.WithCancel(context.Background())
	s.hubCancel = cancel
	go s.hub.Run(hubCtx)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      c.Handler(s.router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Infow("api server starting", "addr", addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hubCancel != nil {
		s.hubCancel()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := req.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	result, err := s.svc.PlaceOrder(r.Context(), order)
	if err != nil {
		// Durability failure: the order was never accepted.
		s.log.Errorw("order rejected", "err", err)
		respondError(w, http.StatusInternalServerError, "order not accepted", err.Error())
		return
	}

	trades := make([]TradeInfo, len(result.Trades))
	for i, t := range result.Trades {
		trades[i] = toTradeInfo(t)
	}

	respondJSON(w, PlaceOrderResponse{
		ServerOrderID:  result.Order.ID,
		Status:         result.Status,
		Matched:        result.Matched,
		Trades:         trades,
		SequenceNumber: result.SequenceNumber,
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OrderID == "" || req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "order_id and symbol are required", "")
		return
	}

	removed, err := s.svc.CancelOrder(r.Context(), req.Symbol, req.OrderID)
	if err != nil {
		s.log.Errorw("cancel failed", "err", err)
		respondError(w, http.StatusInternalServerError, "cancel not accepted", err.Error())
		return
	}

	status := "not_found"
	if removed {
		status = "cancelled"
	}
	respondJSON(w, CancelOrderResponse{Status: status})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "missing symbol", "")
		return
	}

	bids, asks, lastSeq := s.svc.Depth(symbol)
	respondJSON(w, SnapshotResponse{
		Symbol:       symbol,
		Bids:         toDepthLevels(bids),
		Asks:         toDepthLevels(asks),
		LastSequence: lastSeq,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "missing symbol", "")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = n
	}

	trades, err := s.svc.RecentTrades(symbol, limit)
	if err != nil {
		s.log.Errorw("trade history read failed", "err", err)
		respondError(w, http.StatusInternalServerError, "trade history unavailable", "")
		return
	}

	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = toTradeInfo(t)
	}
	respondJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{
		Status:    "healthy",
		Sequence:  s.svc.CurrentSequence(),
		Timestamp: time.Now().UnixMilli(),
	})
}

// BroadcastTrade pushes one trade to subscribed WebSocket clients.
func (s *Server) BroadcastTrade(t engine.Trade) {
	s.hub.BroadcastToChannel("trades:"+t.Symbol, TradeUpdate{
		Type:  "trade",
		Trade: toTradeInfo(t),
	})
}

// BroadcastOrderbook pushes the current aggregated book for one symbol.
func (s *Server) BroadcastOrderbook(symbol string) {
	bids, asks, lastSeq := s.svc.Depth(symbol)
	s.hub.BroadcastToChannel("orderbook:"+symbol, OrderbookUpdate{
		Type:         "orderbook",
		Symbol:       symbol,
		Bids:         toDepthLevels(bids),
		Asks:         toDepthLevels(asks),
		LastSequence: lastSeq,
	})
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode failure", http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, code int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Message: detail})
}
