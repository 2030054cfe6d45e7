package routes

import (
	"log/slog"
	"net/http"
	"time"

	"committeehub/controllers"
	"committeehub/internal/storage"
	"committeehub/middlewares"
	"committeehub/services"
	"committeehub/structs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dependencies struct {
	Users          storage.UserStore
	Auth           *services.AuthService
	Committees     *services.CommitteeService
	Motions        *services.MotionService
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	RequestTimeout time.Duration
	SecureCookies  bool
}

func SetupRouter(deps Dependencies) *gin.Engine {
	structs.UseJSONFieldNames()

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	router := gin.Default()
	router.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authController := controllers.NewAuthController(deps.Auth, deps.Logger, deps.RequestTimeout, deps.SecureCookies)
	committeeController := controllers.NewCommitteeController(deps.Committees, deps.Logger, deps.RequestTimeout)
	motionController := controllers.NewMotionController(deps.Motions, deps.Logger, deps.RequestTimeout)

	api := router.Group("/api")
	SetupAuthRoutes(api, authController)

	protected := api.Group("")
	protected.Use(middlewares.AuthMiddleware(deps.Users, deps.Logger))
	{
		SetupProfileRoutes(protected, authController)
		SetupCommitteeRoutes(protected, committeeController, motionController)
		SetupMotionRoutes(protected, motionController)
	}

	return router
}
