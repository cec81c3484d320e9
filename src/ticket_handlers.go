package main

import (
	"bytes"
	"eventix/src/config"
	"eventix/src/lib"
	"eventix/src/middlewares"
	"eventix/src/services"
	"eventix/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

func ticketHandlers(g *gin.RouterGroup, svc *services.TransactionService, cfg *config.Config) *gin.RouterGroup {
	g.
		GET("/transactions/:id/tickets", func(ctx *gin.Context) {
			id, ok := bindTransactionID(ctx)
			if !ok {
				return
			}
			txn, err := svc.Get(ctx.Request.Context(), middlewares.GetPrincipal(ctx), id)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"tickets": txn.Tickets, "count": len(txn.Tickets)})
		}).
		GET("/tickets/:code/qr", func(ctx *gin.Context) {
			var params types.TicketURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ticket, err := svc.TicketByCode(ctx.Request.Context(), middlewares.GetPrincipal(ctx), params.Code)
			if err != nil {
				respondError(ctx, err)
				return
			}
			var buf bytes.Buffer
			data := lib.TicketQRData(ticket.TicketCode, ticket.TransactionID, ticket.UserID, cfg.QRSecret)
			if err := lib.WriteQRCode(&buf, data); err != nil {
				respondError(ctx, err)
				return
			}
			ctx.Header("Cache-Control", "private, max-age=300")
			ctx.Data(http.StatusOK, lib.QRContentType, buf.Bytes())
		})

	return g
}
