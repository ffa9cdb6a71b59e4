// Package http 期权托管服务的 REST 接口。
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	custodyapp "github.com/wyfcoding/optionescrow/internal/custody/application"
	"github.com/wyfcoding/optionescrow/internal/options/application"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"github.com/wyfcoding/optionescrow/pkg/middleware"
)

// CreateOptionRequest 创建期权请求；利率与波动率为十进制字符串
type CreateOptionRequest struct {
	UnderlyingAssetID string `json:"underlying_asset_id" binding:"required"`
	StrikeAssetID     string `json:"strike_asset_id" binding:"required"`
	StrikePrice       uint64 `json:"strike_price"`
	Expiration        int64  `json:"expiration" binding:"required"` // Unix 秒
	Spot              uint64 `json:"spot"`
	RiskFreeRate      string `json:"risk_free_rate" binding:"required"`
	Volatility        string `json:"volatility" binding:"required"`
	Amount            uint64 `json:"amount"`
}

// QuoteRequest 报价请求
type QuoteRequest struct {
	Spot                uint64 `json:"spot"`
	Strike              uint64 `json:"strike"`
	TimeToExpirySeconds uint64 `json:"time_to_expiry_seconds"`
	RiskFreeRate        string `json:"risk_free_rate" binding:"required"`
	Volatility          string `json:"volatility" binding:"required"`
	Formula             string `json:"formula"`
}

// DepositRequest 管理员注资请求
type DepositRequest struct {
	Owner  string `json:"owner" binding:"required"`
	Asset  string `json:"asset" binding:"required"`
	Amount uint64 `json:"amount"`
	Reason string `json:"reason"`
}

// BalanceResponse 余额
type BalanceResponse struct {
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
	Balance uint64 `json:"balance"`
}

// Handler 期权与托管 HTTP 处理器
type Handler struct {
	options *application.OptionService
	custody *custodyapp.CustodyService
}

func NewHandler(options *application.OptionService, custody *custodyapp.CustodyService) *Handler {
	return &Handler{options: options, custody: custody}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/options", h.CreateOption)
		api.GET("/options", h.ListOptions)
		api.GET("/options/:id", h.GetOption)
		api.POST("/options/:id/exercise", h.ExerciseOption)
		api.POST("/quotes", h.Quote)
		api.POST("/admin/deposits", h.Deposit)
		api.GET("/balances/:owner/:asset", h.Balance)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateOption 创建期权合约，调用方即创建者
func (h *Handler) CreateOption(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req CreateOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rate, err := pricing.ParseRate(req.RiskFreeRate)
	if err != nil {
		fail(c, err)
		return
	}
	vol, err := pricing.ParseRate(req.Volatility)
	if err != nil {
		fail(c, err)
		return
	}

	view, err := h.options.Create(c.Request.Context(), application.CreateCommand{
		Creator:           caller,
		UnderlyingAssetID: req.UnderlyingAssetID,
		StrikeAssetID:     req.StrikeAssetID,
		StrikePrice:       req.StrikePrice,
		Expiration:        time.Unix(req.Expiration, 0),
		Spot:              req.Spot,
		RiskFreeRate:      rate,
		Volatility:        vol,
		Amount:            req.Amount,
	})
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, view)
}

// ExerciseOption 调用方行权
func (h *Handler) ExerciseOption(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	view, err := h.options.Exercise(c.Request.Context(), application.ExerciseCommand{
		Exerciser: caller,
		Address:   c.Param("id"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, view)
}

func (h *Handler) GetOption(c *gin.Context) {
	view, err := h.options.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, view)
}

// ListOptions 按创建者查询，active=true 只返回可行权的合约
func (h *Handler) ListOptions(c *gin.Context) {
	activeOnly := false
	if s := c.Query("active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			badRequest(c, "active must be a boolean")
			return
		}
		activeOnly = v
	}
	views, err := h.options.List(c.Request.Context(), c.Query("creator"), activeOnly)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, views)
}

func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rate, err := pricing.ParseRate(req.RiskFreeRate)
	if err != nil {
		fail(c, err)
		return
	}
	vol, err := pricing.ParseRate(req.Volatility)
	if err != nil {
		fail(c, err)
		return
	}
	q, err := h.options.Quote(c.Request.Context(), application.QuoteCommand{
		Spot:                req.Spot,
		Strike:              req.Strike,
		TimeToExpirySeconds: req.TimeToExpirySeconds,
		RiskFreeRate:        rate,
		Volatility:          vol,
		Formula:             req.Formula,
	})
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, q)
}

// Deposit 管理员注资
func (h *Handler) Deposit(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	balance, err := h.custody.Deposit(c.Request.Context(), custodyapp.DepositCommand{
		Caller: caller,
		Owner:  req.Owner,
		Asset:  req.Asset,
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, BalanceResponse{Owner: req.Owner, Asset: req.Asset, Balance: balance})
}

func (h *Handler) Balance(c *gin.Context) {
	owner, asset := c.Param("owner"), c.Param("asset")
	balance, err := h.custody.Balance(c.Request.Context(), owner, asset)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, BalanceResponse{Owner: owner, Asset: asset, Balance: balance})
}

// callerID 读取调用方身份；签名校验由网关完成
func callerID(c *gin.Context) (string, bool) {
	caller := c.GetHeader(middleware.HeaderPartyID)
	if caller == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
			Code:    "UNAUTHENTICATED",
			Message: "missing " + middleware.HeaderPartyID + " header",
		})
		return "", false
	}
	return caller, true
}
