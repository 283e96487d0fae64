package botfilter

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/fvbock/endless"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/scraperwall/botfilter/config"
	log "github.com/sirupsen/logrus"
)

// API provides the HTTP REST API for inspecting and editing the evidence
type API struct {
	botfilter *Botfilter
	router    *gin.Engine
	config    *config.Config
	ctx       context.Context
}

// NewAPI creates a new REST-API for botfilter
func NewAPI(ctx context.Context, config *config.Config, botfilter *Botfilter) *API {
	api := &API{
		config:    config,
		ctx:       ctx,
		botfilter: botfilter,
	}

	api.router = gin.New()
	api.router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	api.router.Use(cors.New(corsConfig))

	api.router.GET("/evidence", api.getEvidence)
	api.router.DELETE("/evidence", api.clearEvidence)
	api.router.GET("/evidence/ips", api.getIPs)
	api.router.POST("/evidence/ips/:ip", api.addIP)
	api.router.DELETE("/evidence/ips/:ip", api.removeIP)
	api.router.GET("/evidence/useragents", api.getFingerprints)
	api.router.DELETE("/evidence/useragents/:fingerprint", api.removeFingerprint)
	api.router.GET("/stats", api.getStats)
	api.router.GET("/decisions", api.getDecisions)
	api.router.GET("/trap-link", api.getTrapLink)

	return api
}

// Run serves the API until the process exits
func (a *API) Run() {
	log.Infof("API listening on %s", a.config.APIAddress)
	if err := endless.ListenAndServe(a.config.APIAddress, a.router); err != nil {
		log.Errorf("API server: %s", err)
	}
}

func (a *API) getEvidence(c *gin.Context) {
	counts, err := a.botfilter.evidence.Counts()
	if err != nil {
		log.Errorf("counting evidence: %s", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to count evidence"})
		return
	}

	c.JSON(http.StatusOK, counts)
}

func (a *API) clearEvidence(c *gin.Context) {
	if err := a.botfilter.evidence.Clear(); err != nil {
		log.Errorf("clearing evidence: %s", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to clear evidence"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) getIPs(c *gin.Context) {
	ips, err := a.botfilter.evidence.IPs()
	if err != nil {
		log.Errorf("listing ips: %s", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load IPs"})
		return
	}

	c.JSON(http.StatusOK, ips)
}

func (a *API) addIP(c *gin.Context) {
	ip := net.ParseIP(c.Param("ip"))
	if ip == nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": c.Param("ip") + " is not a valid IP address"})
		return
	}

	if err := a.botfilter.evidence.AddIP(ip.String()); err != nil {
		log.Errorf("adding ip %s: %s", ip, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to store IP"})
		return
	}

	c.Status(http.StatusCreated)
}

func (a *API) removeIP(c *gin.Context) {
	if err := a.botfilter.evidence.RemoveIP(c.Param("ip")); err != nil {
		log.Errorf("removing ip %s: %s", c.Param("ip"), err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to remove IP"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) getFingerprints(c *gin.Context) {
	fps, err := a.botfilter.evidence.Fingerprints()
	if err != nil {
		log.Errorf("listing fingerprints: %s", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load user agents"})
		return
	}

	c.JSON(http.StatusOK, fps)
}

func (a *API) removeFingerprint(c *gin.Context) {
	fp := strings.ToLower(c.Param("fingerprint"))
	if len(fp) != 64 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "fingerprints are 64 hex characters"})
		return
	}

	if err := a.botfilter.evidence.RemoveFingerprint(fp); err != nil {
		log.Errorf("removing fingerprint %s: %s", fp, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to remove user agent"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) getStats(c *gin.Context) {
	var data struct {
		Totals  Stats            `json:"totals"`
		Reasons map[string]int64 `json:"reasons"`
		Windows []Stats          `json:"windows"`
	}

	data.Totals = a.botfilter.stats.Totals()
	data.Reasons = a.botfilter.stats.Reasons()
	data.Windows = a.botfilter.stats.All()

	c.JSON(http.StatusOK, data)
}

func (a *API) getDecisions(c *gin.Context) {
	c.JSON(http.StatusOK, a.botfilter.filter.Recent().Events())
}

func (a *API) getTrapLink(c *gin.Context) {
	base := c.Query("base")
	if base == "" {
		base = "https://" + c.Request.Host
	}
	label := c.DefaultQuery("label", "Unsubscribe")

	link := TrapLink(base, a.config.ManagedRoot, a.config.TrapToken)

	c.JSON(http.StatusOK, gin.H{
		"link":    link,
		"snippet": TrapSnippet(link, label),
	})
}
