package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"exconnector/internal/gateway/exchange"
	"exconnector/internal/logger"
)

// Router exposes the exchange operations under /api.
type Router struct {
	ex exchange.Exchange
}

func NewRouter(ex exchange.Exchange) *Router {
	return &Router{ex: ex}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/orders", r.handlePlaceOrder)
	group.POST("/orders/cancel", r.handleCancelOrder)
	group.GET("/positions", r.handlePositions)
	group.GET("/collateral", r.handleCollateral)
	group.GET("/session", r.handleSession)
}

func (r *Router) handlePlaceOrder(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := decodeOrder(string(raw))
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.ex.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		logger.Warnf("http: place order %s %s %s failed: %v", req.Symbol, req.Side, req.Quantity, err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleCancelOrder(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := decodeCancel(string(raw))
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.ex.CancelOrder(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handlePositions(c *gin.Context) {
	q := exchange.PositionQuery{
		Account: strings.TrimSpace(c.Query("account")),
		Symbol:  strings.TrimSpace(c.Query("symbol")),
	}
	positions, err := r.ex.GetPositions(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"venue": r.ex.Name(), "positions": nonNil(positions)})
}

func (r *Router) handleCollateral(c *gin.Context) {
	q := exchange.CollateralQuery{
		Account:  strings.TrimSpace(c.Query("account")),
		Currency: strings.ToUpper(strings.TrimSpace(c.Query("currency"))),
	}
	balances, err := r.ex.GetCollateral(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"venue": r.ex.Name(), "collateral": nonNil(balances)})
}

func (r *Router) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, r.sessionStatus())
}

func (r *Router) sessionStatus() exchange.SessionStatus {
	if reporter, ok := r.ex.(exchange.SessionReporter); ok {
		return reporter.SessionStatus()
	}
	return exchange.SessionStatus{Venue: r.ex.Name(), State: "stateless"}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
