package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-cash-ledger/internal/app/core/usecase"
)

const cashMessage = "Cash value must be at least 1"

// CreateUserRequest POST /user
type CreateUserRequest struct {
	Name string `json:"name" binding:"required"`
}

// CashRequest 存款、提款、轉帳共用的金額 (最小貨幣單位)
type CashRequest struct {
	Cash int64 `json:"cash" binding:"required,min=1"`
}

// Handler 將 HTTP 請求轉給帳本引擎
type Handler struct {
	core   *usecase.CoreUseCase
	logger *zap.Logger
}

func NewHandler(core *usecase.CoreUseCase, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{core: core, logger: logger}
}

// RegisterRoutes 註冊帳戶相關路由
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/user", h.CreateUser)
	r.GET("/user/balance/:id", h.GetBalance)
	r.POST("/user/send/:id", h.Send)
	r.POST("/user/withdraw/:id", h.Withdraw)
	r.POST("/user/transfer/:from/:to", h.Transfer)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "Bad request", nil)
		return
	}

	acc, err := h.core.CreateAccount(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	respond(c, http.StatusCreated, "User has been successfully created.", acc)
}

func (h *Handler) GetBalance(c *gin.Context) {
	id := c.Param("id")
	currency := c.Query("currency")

	view, err := h.core.GetBalance(c.Request.Context(), id, currency)
	if err != nil {
		h.fail(c, err, messages{
			domain.KindInvalidArgument: "Currency must be a 3-letter code",
		})
		return
	}
	if !view.ConversionRequested() {
		respond(c, http.StatusOK, "User balance received successfully!", view.Account)
		return
	}

	to := currency
	if view.Conversion != nil {
		to = view.Conversion.To
	}
	respond(c, http.StatusOK,
		fmt.Sprintf("User balance from %s to %s has successfully received!", view.Account.Currency, to),
		view,
	)
}

func (h *Handler) Send(c *gin.Context) {
	id := c.Param("id")
	var req CashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, cashMessage, nil)
		return
	}

	acc, err := h.core.Credit(c.Request.Context(), id, req.Cash)
	if err != nil {
		h.fail(c, err, messages{
			domain.KindNotFound: fmt.Sprintf("User with id %s was not found!", id),
		})
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf("%d has been successfully sent to %s", req.Cash, acc.Name), acc)
}

func (h *Handler) Withdraw(c *gin.Context) {
	id := c.Param("id")
	var req CashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, cashMessage, nil)
		return
	}

	acc, err := h.core.Debit(c.Request.Context(), id, req.Cash)
	if err != nil {
		h.fail(c, err, messages{
			domain.KindNotFound:          fmt.Sprintf("User with id %s was not found!", id),
			domain.KindInsufficientFunds: "User balance is not enough!",
		})
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf("%d was successfully withdraw!", req.Cash), acc)
}

func (h *Handler) Transfer(c *gin.Context) {
	from, to := c.Param("from"), c.Param("to")
	var req CashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, cashMessage, nil)
		return
	}

	res, err := h.core.Transfer(c.Request.Context(), from, to, req.Cash)
	if err != nil {
		msgs := messages{domain.KindInsufficientFunds: "Not enough balance"}
		if domain.KindOf(err) == domain.KindNotFound {
			missing := from
			var de *domain.Error
			if errors.As(err, &de) && de.Field("side") == "to" {
				missing = to
			}
			msgs[domain.KindNotFound] = fmt.Sprintf("User: %s was not found", missing)
		}
		h.fail(c, err, msgs)
		return
	}
	respond(c, http.StatusOK,
		fmt.Sprintf("%d was successfully sent from %s to %s", req.Cash, res.From.Name, res.To.Name),
		res,
	)
}

// Health 存活檢查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
