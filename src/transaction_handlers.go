package main

import (
	"eventix/src/config"
	"eventix/src/lib"
	"eventix/src/middlewares"
	"eventix/src/services"
	"eventix/src/store"
	"eventix/src/types"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errorStatus = map[types.ErrorKind]int{
	types.ERR_NOT_FOUND:                    http.StatusNotFound,
	types.ERR_UNAUTHORIZED:                 http.StatusForbidden,
	types.ERR_INVALID_STATE:                http.StatusConflict,
	types.ERR_INSUFFICIENT_SEATS:           http.StatusConflict,
	types.ERR_TRANSACTION_EXPIRED:          http.StatusConflict,
	types.ERR_INVALID_OR_EXPIRED_COUPON:    http.StatusUnprocessableEntity,
	types.ERR_INVALID_OR_EXPIRED_VOUCHER:   http.StatusUnprocessableEntity,
	types.ERR_INSUFFICIENT_POINTS:          http.StatusUnprocessableEntity,
	types.ERR_INVALID_DISCOUNT_COMBINATION: http.StatusUnprocessableEntity,
	types.ERR_VALIDATION:                   http.StatusUnprocessableEntity,
}

func respondError(ctx *gin.Context, err error) {
	kind := types.KindOf(err)
	status, ok := errorStatus[kind]
	if !ok {
		zap.L().Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "kind": types.ERR_INTERNAL})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func bindTransactionID(ctx *gin.Context) (uuid.UUID, bool) {
	var params types.TransactionURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return uuid.Nil, false
	}
	return uuid.MustParse(params.ID), true
}

func parseOptionalID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := uuid.MustParse(*s)
	return &id
}

func transactionHandlers(g *gin.RouterGroup, svc *services.TransactionService, cfg *config.Config) *gin.RouterGroup {
	proofConfig := lib.DefaultProofUploadConfig
	if cfg.MaxProofSizeMiB > 0 {
		proofConfig.MaxSizeBytes = int64(cfg.MaxProofSizeMiB) * 1024 * 1024
	}

	g.
		POST("/transactions", func(ctx *gin.Context) {
			var body types.CreateTransactionRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			attendDate, _ := time.Parse(config.DATE_FORMAT, body.AttendDate)
			txn, err := svc.Create(ctx.Request.Context(), middlewares.GetPrincipal(ctx), services.CreateInput{
				EventID:       uuid.MustParse(body.EventID),
				Quantity:      body.Quantity,
				AttendDate:    attendDate,
				PaymentMethod: types.PaymentMethod(body.PaymentMethod),
				CouponID:      parseOptionalID(body.CouponID),
				VoucherID:     parseOptionalID(body.VoucherID),
				PointsUsed:    body.PointsUsed,
			})
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"transaction": txn})
		}).
		GET("/transactions", func(ctx *gin.Context) {
			var query types.TransactionQueryFilters
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			filter := store.TransactionFilter{Status: types.TransactionStatus(query.Status)}
			if query.EventID != "" {
				eventID := uuid.MustParse(query.EventID)
				filter.EventID = &eventID
			}
			txns, err := svc.List(ctx.Request.Context(), middlewares.GetPrincipal(ctx), filter)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
		}).
		GET("/transactions/:id", func(ctx *gin.Context) {
			id, ok := bindTransactionID(ctx)
			if !ok {
				return
			}
			txn, err := svc.Get(ctx.Request.Context(), middlewares.GetPrincipal(ctx), id)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"transaction": txn})
		}).
		POST("/transactions/:id/payment-proof", func(ctx *gin.Context) {
			id, ok := bindTransactionID(ctx)
			if !ok {
				return
			}
			fh, err := ctx.FormFile("file")
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
				return
			}
			if fh.Size > proofConfig.MaxSizeBytes {
				ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{
					"error": fmt.Sprintf("file size exceeds maximum limit of %d MB", proofConfig.MaxSizeBytes/(1024*1024)),
				})
				return
			}
			f, err := fh.Open()
			if err != nil {
				respondError(ctx, err)
				return
			}
			defer f.Close()
			body, err := io.ReadAll(io.LimitReader(f, proofConfig.MaxSizeBytes+1))
			if err != nil {
				respondError(ctx, err)
				return
			}
			mimeType, err := lib.DetectUpload(body, proofConfig)
			if err != nil {
				respondError(ctx, types.WrapError(types.ERR_VALIDATION, err, "invalid payment proof"))
				return
			}
			txn, err := svc.SubmitPayment(ctx.Request.Context(), middlewares.GetPrincipal(ctx), id, services.PaymentProof{
				Filename:    fh.Filename,
				ContentType: mimeType,
				Body:        body,
			})
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"transaction": txn})
		}).
		PUT("/transactions/:id/action", func(ctx *gin.Context) {
			id, ok := bindTransactionID(ctx)
			if !ok {
				return
			}
			var body types.OrganizerActionRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			txn, tickets, err := svc.OrganizerAction(ctx.Request.Context(), middlewares.GetPrincipal(ctx), id, types.OrganizerAction(body.Action))
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"transaction": txn, "tickets": tickets})
		}).
		POST("/transactions/:id/free-tickets", func(ctx *gin.Context) {
			id, ok := bindTransactionID(ctx)
			if !ok {
				return
			}
			tickets, err := svc.GenerateFreeTicket(ctx.Request.Context(), middlewares.GetPrincipal(ctx), id)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"tickets": tickets})
		})

	return g
}
