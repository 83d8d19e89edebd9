package docs

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed swagger.json
var SwaggerJSON []byte

// Serve writes the OpenAPI document the Swagger UI loads.
func Serve(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", SwaggerJSON)
}
