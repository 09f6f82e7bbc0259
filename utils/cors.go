package utils

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Cors lets browser pages on any origin drive the control API. Only the
// methods and headers the API uses are allowed.
func Cors(r gin.IRoutes) {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	config.ExposeHeaders = []string{"X-Frame-Timestamp"}
	r.Use(cors.New(config))
}
