package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pigeon-auction/internal/api/middleware"
	"pigeon-auction/internal/domain"
	"pigeon-auction/internal/services"
	"pigeon-auction/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AuctionService is the slice of the auction manager the REST surface uses.
type AuctionService interface {
	CreateAuction(ctx context.Context, seller *domain.Identity, in services.CreateAuctionInput) (*domain.Auction, error)
	GetAuction(ctx context.Context, auctionID string) domain.OperationResult
	ListAuctions(ctx context.Context, filter domain.AuctionFilter) ([]*domain.Auction, error)
	CancelAuction(ctx context.Context, auctionID string, requester *domain.Identity) domain.OperationResult
}

type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID string, bidder *domain.Identity, amount float64, maxBid *float64) domain.SettlementOutcome
}

type AuctionHandler struct {
	auctions AuctionService
	bids     BidPlacer
	log      logger.Logger
}

type PlaceBidRequest struct {
	Amount float64  `json:"amount"`
	MaxBid *float64 `json:"maxBid"`
}

type PlaceBidResponse struct {
	Success bool        `json:"success"`
	Bid     *domain.Bid `json:"bid"`
	Meta    BidMeta     `json:"meta"`
}

type BidMeta struct {
	WasExtended      bool      `json:"wasExtended"`
	NewEndTime       time.Time `json:"newEndTime"`
	AutoBidTriggered bool      `json:"autoBidTriggered"`
}

type ListAuctionsResponse struct {
	Auctions []*domain.Auction `json:"auctions"`
}

type ErrorResponse struct {
	Error        string        `json:"error"`
	Code         domain.Reason `json:"code,omitempty"`
	CurrentPrice *float64      `json:"currentPrice,omitempty"`
}

func NewAuctionHandler(auctions AuctionService, bids BidPlacer, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		bids:     bids,
		log:      log,
	}
}

// Register mounts the auction routes on g. mw is applied per route so an
// empty-prefix group does not grab unmatched paths.
func (h *AuctionHandler) Register(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.GET("/auctions", h.ListAuctions, mw...)
	g.POST("/auctions", h.CreateAuction, mw...)
	g.GET("/auctions/:id", h.GetAuction, mw...)
	g.DELETE("/auctions/:id", h.CancelAuction, mw...)
	g.POST("/auctions/:id/bids", h.PlaceBid, mw...)
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	auctions, err := h.auctions.ListAuctions(c.Request().Context(), filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list auctions",
			Code:  domain.ReasonStorageError,
		})
	}
	return c.JSON(http.StatusOK, ListAuctionsResponse{Auctions: auctions})
}

func parseFilter(c echo.Context) (domain.AuctionFilter, error) {
	filter := domain.AuctionFilter{
		Category: c.QueryParam("category"),
		Gender:   c.QueryParam("gender"),
		Search:   c.QueryParam("search"),
	}

	if s := c.QueryParam("status"); s != "" {
		status, err := domain.ParseAuctionStatus(s)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}

	sortBy, err := domain.ParseSortKey(c.QueryParam("sortBy"))
	if err != nil {
		return filter, err
	}
	filter.SortBy = sortBy

	if s := c.QueryParam("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return filter, fmt.Errorf("invalid limit %q", s)
		}
		filter.Limit = limit
	}

	if filter.PriceMin, err = floatParam(c, "priceMin"); err != nil {
		return filter, err
	}
	if filter.PriceMax, err = floatParam(c, "priceMax"); err != nil {
		return filter, err
	}
	return filter, nil
}

func floatParam(c echo.Context, name string) (*float64, error) {
	s := c.QueryParam(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, s)
	}
	return &v, nil
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	result := h.auctions.GetAuction(c.Request().Context(), c.Param("id"))
	if !result.OK() {
		return h.operationError(c, result)
	}
	return c.JSON(http.StatusOK, result.Auction)
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	seller := middleware.IdentityFrom(c)
	if seller == nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: "authentication required",
			Code:  domain.ReasonUnauthorized,
		})
	}

	var in services.CreateAuctionInput
	if err := c.Bind(&in); err != nil {
		h.log.Debug("Failed to bind auction", "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	auction, err := h.auctions.CreateAuction(c.Request().Context(), seller, in)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, auction)
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrMissingCredential):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: domain.ReasonUnauthorized})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create auction", Code: domain.ReasonStorageError})
	}
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	result := h.auctions.CancelAuction(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c))
	if !result.OK() {
		return h.operationError(c, result)
	}
	return c.JSON(http.StatusOK, result.Auction)
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "bid amount must be a number",
			Code:  domain.ReasonInvalidAmount,
		})
	}

	outcome := h.bids.PlaceBid(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c), req.Amount, req.MaxBid)
	if !outcome.Accepted {
		if outcome.Reason.Retryable() {
			c.Response().Header().Set("Retry-After", "1")
		}
		return c.JSON(StatusFor(outcome.Reason), ErrorResponse{
			Error:        outcome.Message,
			Code:         outcome.Reason,
			CurrentPrice: outcome.CurrentPrice,
		})
	}

	return c.JSON(http.StatusCreated, PlaceBidResponse{
		Success: true,
		Bid:     outcome.Bid,
		Meta: BidMeta{
			WasExtended:      outcome.WasExtended,
			NewEndTime:       outcome.NewEndTime,
			AutoBidTriggered: outcome.AutoBidTriggered,
		},
	})
}

func (h *AuctionHandler) operationError(c echo.Context, result domain.OperationResult) error {
	if result.Reason.Retryable() {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(StatusFor(result.Reason), ErrorResponse{Error: result.Message, Code: result.Reason})
}

// StatusFor maps a rejection reason to its HTTP status.
func StatusFor(reason domain.Reason) int {
	switch reason {
	case domain.ReasonBidTooLow, domain.ReasonAuctionNotActive, domain.ReasonAuctionEnded, domain.ReasonInvalidAmount:
		return http.StatusBadRequest
	case domain.ReasonUnauthorized:
		return http.StatusUnauthorized
	case domain.ReasonForbidden:
		return http.StatusForbidden
	case domain.ReasonNotFound:
		return http.StatusNotFound
	case domain.ReasonBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
