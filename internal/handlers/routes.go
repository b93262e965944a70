package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router wires handlers and middleware onto a gin engine.
type Router struct {
	Auth         *AuthHandler
	Subscription *SubscriptionHandler
	API          *APIHandler
	Drafts       *DraftHandler

	RequireAuth        gin.HandlerFunc
	RequireEntitlement gin.HandlerFunc
	AuthRateLimit      gin.HandlerFunc
	CORS               gin.HandlerFunc
}

func (rt Router) Register(router *gin.Engine) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public subscription lookup, callable cross-origin
	check := router.Group("/api", rt.CORS)
	{
		check.POST("/check-subscription", rt.Subscription.CheckSubscription)
		check.OPTIONS("/check-subscription", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/signup", rt.AuthRateLimit, rt.Auth.SignUp)
		auth.POST("/signin", rt.AuthRateLimit, rt.Auth.SignIn)
		auth.POST("/refresh", rt.AuthRateLimit, rt.Auth.Refresh)
		auth.POST("/signout", rt.RequireAuth, rt.Auth.SignOut)
		auth.GET("/session", rt.RequireAuth, rt.Auth.Session)
	}

	subscription := api.Group("/subscription", rt.RequireAuth)
	{
		subscription.GET("", rt.Subscription.Status)
		subscription.POST("/refresh", rt.Subscription.Refresh)
	}

	// Everything below needs a paid subscription
	managed := api.Group("", rt.RequireAuth, rt.RequireEntitlement)
	{
		managed.GET("/customers", rt.API.ListCustomers)
		managed.POST("/customers", rt.API.CreateCustomer)
		managed.GET("/customers/:id", rt.API.GetCustomer)
		managed.PUT("/customers/:id", rt.API.UpdateCustomer)
		managed.DELETE("/customers/:id", rt.API.DeleteCustomer)

		managed.GET("/products", rt.API.ListProducts)
		managed.POST("/products", rt.API.CreateProduct)
		managed.GET("/products/:id", rt.API.GetProduct)
		managed.PUT("/products/:id", rt.API.UpdateProduct)
		managed.DELETE("/products/:id", rt.API.DeleteProduct)

		managed.GET("/orders", rt.API.ListOrders)
		managed.POST("/orders", rt.Drafts.CreateOrder)
		managed.GET("/orders/:id", rt.API.GetOrder)
		managed.PUT("/orders/:id", rt.Drafts.UpdateOrder)
		managed.DELETE("/orders/:id", rt.API.DeleteOrder)
		managed.GET("/orders/:id/summary", rt.API.GetOrderSummary)

		managed.POST("/orders/drafts", rt.Drafts.CreateDraft)
		managed.GET("/orders/drafts/:id", rt.Drafts.GetDraft)
		managed.PATCH("/orders/drafts/:id", rt.Drafts.UpdateDraft)
		managed.DELETE("/orders/drafts/:id", rt.Drafts.DiscardDraft)
		managed.POST("/orders/drafts/:id/items", rt.Drafts.AddItem)
		managed.PATCH("/orders/drafts/:id/items/:index", rt.Drafts.UpdateItem)
		managed.DELETE("/orders/drafts/:id/items/:index", rt.Drafts.RemoveItem)
		managed.POST("/orders/drafts/:id/commit", rt.Drafts.CommitDraft)
	}
}
