package registry

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aurthurm/WidgetMaster/connector"
	"github.com/aurthurm/WidgetMaster/httpapi"
)

// API provides the CRUD handlers for the connection and dataset registries.
type API struct {
	store *Store
}

// NewAPI creates a new API handler with the given store.
func NewAPI(store *Store) *API {
	return &API{store: store}
}

// RegisterRoutes registers the registry routes with the given Gin router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	connectionRoutes := v1.Group("/connections")
	{
		connectionRoutes.POST("", a.createConnectionHandler)
		connectionRoutes.GET("", a.listConnectionsHandler)
		connectionRoutes.GET("/:connection_id", a.getConnectionHandler)
		connectionRoutes.PUT("/:connection_id", a.updateConnectionHandler)
		connectionRoutes.DELETE("/:connection_id", a.deleteConnectionHandler)
	}

	datasetRoutes := v1.Group("/datasets")
	{
		datasetRoutes.POST("", a.createDatasetHandler)
		datasetRoutes.GET("", a.listDatasetsHandler)
		datasetRoutes.GET("/:dataset_id", a.getDatasetHandler)
		datasetRoutes.PUT("/:dataset_id", a.updateDatasetHandler)
		datasetRoutes.DELETE("/:dataset_id", a.deleteDatasetHandler)
	}
}

// parseID parses a numeric path parameter, responding 400 on failure.
func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeValidation,
			"Invalid id: "+c.Param(param), nil)
		return 0, false
	}
	return uint(id), true
}

// --- Connection handlers ---

func (a *API) createConnectionHandler(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeValidation,
			"Invalid request payload", gin.H{"reason": err.Error()})
		return
	}

	// Reject configs the executor would not be able to decode later.
	if _, err := connector.FromRecord(0, req.Type, req.Config); err != nil {
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeConfig, err.Error(), nil)
		return
	}

	conn := Connection{Name: req.Name, Type: req.Type, Config: req.Config}
	if err := a.store.CreateConnection(&conn); err != nil {
		log.Printf("Failed to create connection: %v", err)
		httpapi.RespondWithError(c, http.StatusInternalServerError, httpapi.CodeInternalError,
			"Failed to create connection", nil)
		return
	}
	c.JSON(http.StatusCreated, conn)
}

func (a *API) listConnectionsHandler(c *gin.Context) {
	conns, err := a.store.ListConnections()
	if err != nil {
		log.Printf("Failed to list connections: %v", err)
		httpapi.RespondWithError(c, http.StatusInternalServerError, httpapi.CodeInternalError,
			"Failed to list connections", nil)
		return
	}
	c.JSON(http.StatusOK, conns)
}

func (a *API) getConnectionHandler(c *gin.Context) {
	id, ok := parseID(c, "connection_id")
	if !ok {
		return
	}
	conn, err := a.store.GetConnection(id)
	if err != nil {
		a.respondStoreError(c, err, "connection")
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (a *API) updateConnectionHandler(c *gin.Context) {
	id, ok := parseID(c, "connection_id")
	if !ok {
		return
	}
	var req UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeValidation,
			"Invalid request payload", gin.H{"reason": err.Error()})
		return
	}

	conn, err := a.store.GetConnection(id)
	if err != nil {
		a.respondStoreError(c, err, "connection")
		return
	}
	if req.Name != nil {
		conn.Name = *req.Name
	}
	if req.Type != nil {
		conn.Type = *req.Type
	}
	if req.Config != nil {
		conn.Config = req.Config
	}
	if _, err := connector.FromRecord(conn.ID, conn.Type, conn.Config); err != nil {
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeConfig, err.Error(), nil)
		return
	}

	if err := a.store.UpdateConnection(&conn); err != nil {
		log.Printf("Failed to update connection %d: %v", id, err)
		httpapi.RespondWithError(c, http.StatusInternalServerError, httpapi.CodeInternalError,
			"Failed to update connection", nil)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (a *API) deleteConnectionHandler(c *gin.Context) {
	id, ok := parseID(c, "connection_id")
	if !ok {
		return
	}
	if err := a.store.DeleteConnection(id); err != nil {
		a.respondStoreError(c, err, "connection")
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Dataset handlers ---

func (a *API) createDatasetHandler(c *gin.Context) {
	var req CreateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeValidation,
			"Invalid request payload", gin.H{"reason": err.Error()})
		return
	}

	ds := Dataset{ConnectionID: req.ConnectionID, Name: req.Name, Query: req.Query, Table: req.Table}
	if err := a.store.CreateDataset(&ds); err != nil {
		a.respondStoreError(c, err, "dataset")
		return
	}
	c.JSON(http.StatusCreated, ds)
}

func (a *API) listDatasetsHandler(c *gin.Context) {
	var connectionID uint
	if raw := c.Query("connection_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeValidation,
				"Invalid connection_id filter: "+raw, nil)
			return
		}
		connectionID = uint(parsed)
	}

	datasets, err := a.store.ListDatasets(connectionID)
	if err != nil {
		log.Printf("Failed to list datasets: %v", err)
		httpapi.RespondWithError(c, http.StatusInternalServerError, httpapi.CodeInternalError,
			"Failed to list datasets", nil)
		return
	}
	c.JSON(http.StatusOK, datasets)
}

func (a *API) getDatasetHandler(c *gin.Context) {
	id, ok := parseID(c, "dataset_id")
	if !ok {
		return
	}
	ds, err := a.store.GetDataset(id)
	if err != nil {
		a.respondStoreError(c, err, "dataset")
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (a *API) updateDatasetHandler(c *gin.Context) {
	id, ok := parseID(c, "dataset_id")
	if !ok {
		return
	}
	var req UpdateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeValidation,
			"Invalid request payload", gin.H{"reason": err.Error()})
		return
	}

	ds, err := a.store.GetDataset(id)
	if err != nil {
		a.respondStoreError(c, err, "dataset")
		return
	}
	if req.Name != nil {
		ds.Name = *req.Name
	}
	if req.Query != nil {
		ds.Query = *req.Query
	}
	if req.Table != nil {
		ds.Table = *req.Table
	}

	if err := a.store.UpdateDataset(&ds); err != nil {
		log.Printf("Failed to update dataset %d: %v", id, err)
		httpapi.RespondWithError(c, http.StatusInternalServerError, httpapi.CodeInternalError,
			"Failed to update dataset", nil)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (a *API) deleteDatasetHandler(c *gin.Context) {
	id, ok := parseID(c, "dataset_id")
	if !ok {
		return
	}
	if err := a.store.DeleteDataset(id); err != nil {
		a.respondStoreError(c, err, "dataset")
		return
	}
	c.Status(http.StatusNoContent)
}

// respondStoreError maps store errors onto the API envelope.
func (a *API) respondStoreError(c *gin.Context, err error, resource string) {
	if errors.Is(err, ErrNotFound) {
		httpapi.RespondWithError(c, http.StatusNotFound, httpapi.CodeNotFound, err.Error(), nil)
		return
	}
	log.Printf("Registry error on %s: %v", resource, err)
	httpapi.RespondWithError(c, http.StatusInternalServerError, httpapi.CodeInternalError,
		"Failed to process "+resource, nil)
}
