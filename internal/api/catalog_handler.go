package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixel-tales-export-api/internal/templates"
)

// listTemplates handles GET /v1/templates
func listTemplates(c *gin.Context) {
	list := templates.Templates()
	c.JSON(http.StatusOK, gin.H{
		"default":   templates.Classic,
		"count":     len(list),
		"templates": list,
	})
}

// listPrintProfiles handles GET /v1/print-profiles
func listPrintProfiles(c *gin.Context) {
	list := templates.PrintProfiles()
	c.JSON(http.StatusOK, gin.H{
		"default":        templates.Screen,
		"count":          len(list),
		"print_profiles": list,
	})
}
