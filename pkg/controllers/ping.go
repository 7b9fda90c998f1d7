package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Ping answers liveness checks.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong", "service": "taxonomy", "time": time.Now().UTC()})
}
