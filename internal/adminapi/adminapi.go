// Package adminapi exposes the Overseer's minimal gin HTTP surface for
// the glassdomectl CLI: status, VM/host introspection, the pending
// request ledger, and the two mutating entrypoints (deploy/destroy) that
// funnel into Overseer.ReceiveRequest.
package adminapi

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/overseer"
)

// Server wraps gin's engine with the Overseer it serves.
type Server struct {
	engine   *gin.Engine
	overseer *overseer.Overseer
	logger   *zap.Logger
}

// NewServer builds the router and registers every route. Follows the
// teacher's cmd/api bootstrap convention of gin.Logger/gin.Recovery plus
// a permissive CORS pass for the CLI and any future dashboard.
func NewServer(ov *overseer.Overseer, logger *zap.Logger) *Server {
	if os.Getenv("GIN_MODE") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s := &Server{engine: router, overseer: ov, logger: logger}
	s.routes()
	return s
}

// Engine exposes the underlying *gin.Engine for ListenAndServe wiring.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/vms", s.handleListVMs)
	s.engine.GET("/vms/:id", s.handleGetVM)
	s.engine.GET("/hosts", s.handleListHosts)
	s.engine.GET("/requests", s.handleListRequests)
	s.engine.POST("/deploy", s.handleDeploy)
	s.engine.POST("/destroy", s.handleDestroy)
	s.engine.GET("/missions", s.handleListMissions)
	s.engine.GET("/missions/:id", s.handleGetMission)
	s.engine.POST("/missions", s.handleCreateMission)
	s.engine.DELETE("/missions/:id", s.handleCancelMission)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleStatus(c *gin.Context) {
	vms := s.overseer.StateVMs()
	hosts := s.overseer.StateHosts()
	missions, err := s.overseer.ListMissions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vm_count":      len(vms),
		"host_count":    len(hosts),
		"mission_count": len(missions),
	})
}

func (s *Server) handleListVMs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"vms": s.overseer.StateVMs()})
}

func (s *Server) handleGetVM(c *gin.Context) {
	vm, ok := s.overseer.GetVM(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "vm not found"})
		return
	}
	c.JSON(http.StatusOK, vm)
}

func (s *Server) handleListHosts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"hosts": s.overseer.StateHosts()})
}

func (s *Server) handleListRequests(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"requests": s.overseer.ListRequests()})
}

type deployRequest struct {
	Platform string                 `json:"platform"`
	OS       string                 `json:"os"`
	Specs    map[string]interface{} `json:"specs"`
	Count    float64                `json:"count,omitempty"`
	User     string                 `json:"user"`
}

func (s *Server) handleDeploy(c *gin.Context) {
	var req deployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := map[string]interface{}{"platform": req.Platform, "os": req.OS, "specs": req.Specs}
	if req.Count > 0 {
		params["count"] = req.Count
	}
	decision := s.overseer.ReceiveRequest(c.Request.Context(), overseer.ActionDeployVM, params, req.User)
	c.JSON(http.StatusOK, decision)
}

type destroyRequest struct {
	VMID            string `json:"vm_id"`
	ForceProduction bool   `json:"force_production,omitempty"`
	User            string `json:"user"`
}

func (s *Server) handleDestroy(c *gin.Context) {
	var req destroyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := map[string]interface{}{"vm_id": req.VMID}
	if req.ForceProduction {
		params["force_production"] = true
	}
	decision := s.overseer.ReceiveRequest(c.Request.Context(), overseer.ActionDestroyVM, params, req.User)
	c.JSON(http.StatusOK, decision)
}

func (s *Server) handleListMissions(c *gin.Context) {
	missions, err := s.overseer.ListMissions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"missions": missions})
}

func (s *Server) handleGetMission(c *gin.Context) {
	mission, found, err := s.overseer.MissionStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "mission not found"})
		return
	}
	c.JSON(http.StatusOK, mission)
}

type createMissionRequest struct {
	MissionID   string                   `json:"mission_id"`
	LabID       string                   `json:"lab_id"`
	MissionType string                   `json:"mission_type"`
	Targets     []map[string]interface{} `json:"targets"`
}

func (s *Server) handleCreateMission(c *gin.Context) {
	var req createMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hosts := toHostStates(req.Targets)
	ok, reason := s.overseer.CreateReaperMission(c.Request.Context(), req.MissionID, req.LabID, req.MissionType, hosts)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleCancelMission(c *gin.Context) {
	if err := s.overseer.CancelReaperMission(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
