package handlers

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/edr"
)

type tokenReceiver interface {
	Put(ctx context.Context, token edr.Token) error
	UpdateAuthCode(ctx context.Context, transferID, authCode string) error
}

// EDRHandler receives the endpoint data references our connector pushes once a transfer
// is started.
type EDRHandler struct {
	tokens tokenReceiver
	logger ectologger.Logger
}

func NewEDRHandler(tokens tokenReceiver, logger ectologger.Logger) *EDRHandler {
	return &EDRHandler{tokens: tokens, logger: logger}
}

type EDRRequest struct {
	ID       string `json:"id" validate:"required,novws"`
	AuthKey  string `json:"authKey" validate:"required,novws"`
	AuthCode string `json:"authCode" validate:"required,novws"`
	Endpoint string `json:"endpoint" validate:"required,novws,url"`
}

type AuthCodeRequest struct {
	ID       string `json:"id" validate:"required,novws"`
	AuthCode string `json:"authCode" validate:"required,novws"`
}

func (h *EDRHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/edrendpoint", h.ReceiveEDR)
	e.POST("/authCodes", h.ReceiveAuthCode)
}

// ReceiveEDR handles POST /edrendpoint
func (h *EDRHandler) ReceiveEDR(c echo.Context) error {
	ctx := c.Request().Context()

	var req EDRRequest
	if err := Bind(c, &req); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Rejected EDR callback")
		return err
	}

	token := edr.Token{
		TransferID: req.ID,
		AuthKey:    req.AuthKey,
		AuthCode:   req.AuthCode,
		Endpoint:   req.Endpoint,
	}
	if err := h.tokens.Put(ctx, token); err != nil {
		return BadRequest(err.Error())
	}
	return c.NoContent(http.StatusOK)
}

// ReceiveAuthCode handles POST /authCodes
func (h *EDRHandler) ReceiveAuthCode(c echo.Context) error {
	ctx := c.Request().Context()

	var req AuthCodeRequest
	if err := Bind(c, &req); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Rejected auth code callback")
		return err
	}

	if err := h.tokens.UpdateAuthCode(ctx, req.ID, req.AuthCode); err != nil {
		return BadRequest(err.Error())
	}
	return c.NoContent(http.StatusOK)
}
