package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NotCoffee418/power-control-center/internal/application/engine"
	"github.com/NotCoffee418/power-control-center/internal/application/observer"
)

// RouterConfig carries the wired handlers and the hub.
type RouterConfig struct {
	PirAPIKey string

	Registry *engine.Registry
	Hub      *observer.WebSocketHub

	Pir      *PirHandlers
	Evaluate *EvaluateHandlers
	Nodesets *NodesetHandlers
	Causes   *CauseHandlers
	Actions  *ActionHandlers
	Settings *SettingHandlers
}

// NewRouter assembles the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		pir := api.Group("/pir", apiKeyAuth(cfg.PirAPIKey))
		{
			pir.POST("/detect", cfg.Pir.HandleDetect)
			pir.POST("/alive", cfg.Pir.HandleAlive)
		}

		api.POST("/evaluate", cfg.Evaluate.HandleEvaluate)

		api.GET("/nodesets", cfg.Nodesets.HandleList)
		api.GET("/nodesets/:id", cfg.Nodesets.HandleGet)
		api.POST("/nodesets", cfg.Nodesets.HandleSave)
		api.DELETE("/nodesets/:id", cfg.Nodesets.HandleDelete)
		api.POST("/nodesets/:id/activate", cfg.Nodesets.HandleActivate)

		api.GET("/causes", cfg.Causes.HandleList)
		api.POST("/causes", cfg.Causes.HandleCreate)
		api.PUT("/causes/:id", cfg.Causes.HandleUpdate)

		api.GET("/actions", cfg.Actions.HandleList)

		api.PUT("/settings/user-home", cfg.Settings.HandleSetUserHomeOverride)
		api.PUT("/settings/auto-mode/:device", cfg.Settings.HandleSetAutoMode)
		api.GET("/status", cfg.Settings.HandleStatus)

		// Node definitions for the editor palette, including the
		// current cause-reason enumeration.
		api.GET("/nodes/definitions", func(c *gin.Context) {
			c.JSON(http.StatusOK, cfg.Registry.Definitions())
		})
	}

	router.GET("/ws/editor", func(c *gin.Context) {
		cfg.Hub.Handle(c.Writer, c.Request)
	})

	return router
}
