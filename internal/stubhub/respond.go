package stubhub

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// envelope mirrors the wire contract the client's enveloped endpoints
// expect: the result under data plus a success flag and a human message.
type envelope struct {
	Data    interface{} `json:"data,omitempty"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
}

func wrapped(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Data: data, Success: true})
}

// raw sends the value without the envelope. The older endpoints answer with
// the bare resource and the client decodes them directly.
func raw(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

func unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, message)
}

func notFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, message)
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, message)
}

func conflict(c *gin.Context, message string) {
	fail(c, http.StatusConflict, message)
}
