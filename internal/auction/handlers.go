package auction

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/pkg/response"
)

// GinHandlers contains HTTP handlers for auction and bidding endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for auction endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// userID pulls the authenticated user from the JWT claims set by the
// middleware; the engine itself never inspects tokens.
func userID(c *gin.Context) (string, bool) {
	claims, exists := c.Get("claims")
	if !exists {
		response.Unauthorized(c, "Missing authentication claims")
		return "", false
	}
	id := auth.GetUserID(claims)
	if id == "" {
		response.Unauthorized(c, "Invalid user ID in token")
		return "", false
	}
	return id, true
}

type createAuctionRequest struct {
	Title              string  `json:"title"`
	StartingPrice      float64 `json:"starting_price"`
	ReservePrice       float64 `json:"reserve_price"`
	MinIncrement       float64 `json:"min_increment"`
	DurationSeconds    int64   `json:"duration_seconds"`
	AutoExtend         bool    `json:"auto_extend"`
	ExtendThresholdSec int64   `json:"extend_threshold_seconds"`
	ExtendBySec        int64   `json:"extend_by_seconds"`
	MaxExtensions      int     `json:"max_extensions"`
}

// CreateAuctionHandler handles POST requests to create a draft auction
// Requires a valid JWT token; the seller is taken from the token claims
func (h *GinHandlers) CreateAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := userID(c)
		if !ok {
			return
		}

		var req createAuctionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		auction, err := h.service.CreateAuction(c.Request.Context(), NewAuctionParams{
			SellerID:        sellerID,
			Title:           req.Title,
			StartingPrice:   req.StartingPrice,
			ReservePrice:    req.ReservePrice,
			MinIncrement:    req.MinIncrement,
			Duration:        time.Duration(req.DurationSeconds) * time.Second,
			AutoExtend:      req.AutoExtend,
			ExtendThreshold: time.Duration(req.ExtendThresholdSec) * time.Second,
			ExtendBy:        time.Duration(req.ExtendBySec) * time.Second,
			MaxExtensions:   req.MaxExtensions,
		})
		response.Handle(c, auction, err)
	}
}

// StartAuctionHandler handles POST requests to activate a draft auction
// URL parameter: auction_id
func (h *GinHandlers) StartAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := userID(c)
		if !ok {
			return
		}

		auctionID := c.Param("auction_id")
		auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if auction == nil {
			response.NotFound(c, "Auction not found")
			return
		}
		if auction.SellerID != sellerID {
			response.Forbidden(c, "Only the seller can start the auction")
			return
		}

		started, err := h.service.StartAuction(c.Request.Context(), auctionID)
		response.Handle(c, started, err)
	}
}

// GetAuctionHandler handles GET requests to retrieve an auction
// URL parameter: auction_id
func (h *GinHandlers) GetAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
		if err != nil || auction == nil {
			response.NotFound(c, "Auction not found")
			return
		}

		response.Success(c, auction)
	}
}

type placeBidRequest struct {
	Amount float64 `json:"amount"`
}

// PlaceBidHandler handles POST requests to bid on an auction
// Requires a valid JWT token; the bidder is taken from the token claims
// URL parameter: auction_id
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bidderID, ok := userID(c)
		if !ok {
			return
		}

		var req placeBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.PlaceBidAndResolve(c.Request.Context(), c.Param("auction_id"), bidderID, req.Amount)
		response.Handle(c, result, err)
	}
}

type proxyBidRequest struct {
	MaxAmount float64 `json:"max_amount"`
}

// SetupProxyBidHandler handles PUT requests to register a standing maximum
// bid; a repeat call replaces the bidder's previous proxy on the auction
// URL parameter: auction_id
func (h *GinHandlers) SetupProxyBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bidderID, ok := userID(c)
		if !ok {
			return
		}

		var req proxyBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.SetupProxyBidAndResolve(c.Request.Context(), c.Param("auction_id"), bidderID, req.MaxAmount)
		response.Handle(c, result, err)
	}
}

// CloseAuctionHandler handles POST requests to close an auction
// Requires internal authentication
// URL parameter: auction_id
func (h *GinHandlers) CloseAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.service.CloseAuction(c.Request.Context(), c.Param("auction_id"))
		response.Handle(c, result, err)
	}
}

// SweepHandler handles POST requests to close all expired auctions, for
// schedulers that prefer to drive the sweep over HTTP
func (h *GinHandlers) SweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		closed, err := h.service.SweepExpiredAuctions(c.Request.Context())
		response.Handle(c, closed, err)
	}
}
