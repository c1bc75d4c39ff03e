package router

import (
	"github.com/gin-gonic/gin"
	"github.com/hsit/hsit-server/handler"
	"github.com/hsit/hsit-server/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Address *handler.AddressHandler
	Ledger  *handler.LedgerHandler
	Bot     *handler.BotHandler
	Wheel   *handler.WheelHandler
}

func SetupRouter(h Handlers, jwtSecret string) *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
	}

	authed := api.Group("", middleware.Auth(jwtSecret))
	{
		authed.GET("/crypto/addresses", h.Address.GetAddresses)
		authed.GET("/balance", h.Ledger.Balance)
		authed.GET("/ledger", h.Ledger.History)
		authed.GET("/bots", h.Bot.ListProducts)
		authed.GET("/bots/purchases", h.Bot.ListPurchases)
		authed.POST("/bots/purchase", h.Bot.Purchase)
		authed.POST("/wheel/spin", h.Wheel.Spin)
		authed.GET("/wheel/history", h.Wheel.History)
	}

	admin := authed.Group("", middleware.AdminOnly())
	{
		admin.POST("/addresses/assign", h.Address.Assign)
		admin.POST("/addresses/bulk-assign", h.Address.BulkAssign)
		admin.POST("/addresses/import", h.Address.Import)
		admin.GET("/addresses/stats", h.Address.Stats)
		admin.POST("/deposits/credit", h.Ledger.CreditDeposit)
		admin.POST("/bots/purchases/:id/complete", h.Bot.Complete)
	}

	return r
}
