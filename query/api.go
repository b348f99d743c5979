// Package query exposes the connection executor over HTTP: dataset data
// fetches, ad-hoc connection queries and SQL schema introspection.
package query

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aurthurm/WidgetMaster/connector"
	"github.com/aurthurm/WidgetMaster/httpapi"
	"github.com/aurthurm/WidgetMaster/registry"
	"github.com/aurthurm/WidgetMaster/status"
)

// API wires the registry store and the executor into HTTP handlers.
type API struct {
	store    *registry.Store
	executor *connector.Executor
	hub      *status.Hub
}

// NewAPI creates the query API. The hub may be nil when notifications are
// not wanted (tests, CLI use).
func NewAPI(store *registry.Store, executor *connector.Executor, hub *status.Hub) *API {
	return &API{store: store, executor: executor, hub: hub}
}

// RegisterRoutes registers the data-fetch routes with the given Gin router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	v1.POST("/datasets/:dataset_id/data", a.datasetDataHandler)
	v1.POST("/connections/:connection_id/query", a.connectionQueryHandler)
	v1.POST("/connections/:connection_id/test", a.testConnectionHandler)
	v1.GET("/connections/:connection_id/tables", a.listTablesHandler)
	v1.GET("/connections/:connection_id/tables/:table/columns", a.tableColumnsHandler)
}

// fetchRequest is the optional body of data-fetch routes. Query overrides
// the dataset's stored query for this request only.
type fetchRequest struct {
	Query string `json:"query"`
}

func bindOptionalBody(c *gin.Context, req *fetchRequest) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeValidation,
			"Invalid request payload", gin.H{"reason": err.Error()})
		return false
	}
	return true
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeValidation,
			"Invalid id: "+c.Param(param), nil)
		return 0, false
	}
	return uint(id), true
}

// loadConnection resolves a registry record into its typed connector form.
func (a *API) loadConnection(c *gin.Context, id uint) (connector.Connection, bool) {
	record, err := a.store.GetConnection(id)
	if err != nil {
		a.respondError(c, err)
		return connector.Connection{}, false
	}
	conn, err := connector.FromRecord(record.ID, record.Type, record.Config)
	if err != nil {
		a.respondError(c, err)
		return connector.Connection{}, false
	}
	return conn, true
}

func (a *API) datasetDataHandler(c *gin.Context) {
	id, ok := parseID(c, "dataset_id")
	if !ok {
		return
	}
	var req fetchRequest
	if !bindOptionalBody(c, &req) {
		return
	}

	record, err := a.store.GetDataset(id)
	if err != nil {
		a.respondError(c, err)
		return
	}
	conn, ok := a.loadConnection(c, record.ConnectionID)
	if !ok {
		return
	}

	dataset := &connector.Dataset{ID: record.ID, Query: record.Query, Table: record.Table}
	rows, err := a.executor.FetchRows(c.Request.Context(), conn, dataset, req.Query)
	if err != nil {
		a.respondError(c, err)
		return
	}

	if a.hub != nil {
		a.hub.Broadcast(status.Event{
			Type:      status.EventDatasetRefreshed,
			DatasetID: record.ID,
			Rows:      len(rows),
		})
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

func (a *API) connectionQueryHandler(c *gin.Context) {
	id, ok := parseID(c, "connection_id")
	if !ok {
		return
	}
	var req fetchRequest
	if !bindOptionalBody(c, &req) {
		return
	}

	conn, ok := a.loadConnection(c, id)
	if !ok {
		return
	}
	rows, err := a.executor.FetchRows(c.Request.Context(), conn, nil, req.Query)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

func (a *API) testConnectionHandler(c *gin.Context) {
	id, ok := parseID(c, "connection_id")
	if !ok {
		return
	}
	conn, ok := a.loadConnection(c, id)
	if !ok {
		return
	}
	if err := a.executor.Test(c.Request.Context(), conn); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "connection ok"})
}

func (a *API) listTablesHandler(c *gin.Context) {
	id, ok := parseID(c, "connection_id")
	if !ok {
		return
	}
	conn, ok := a.loadConnection(c, id)
	if !ok {
		return
	}
	tables, err := a.executor.ListTables(c.Request.Context(), conn)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

func (a *API) tableColumnsHandler(c *gin.Context) {
	id, ok := parseID(c, "connection_id")
	if !ok {
		return
	}
	conn, ok := a.loadConnection(c, id)
	if !ok {
		return
	}
	columns, err := a.executor.TableColumns(c.Request.Context(), conn, c.Param("table"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": columns})
}

// respondError maps executor and registry failures onto REST semantics:
// 404 for unresolved ids, 400 for config and upstream failures, 500 for
// anything unclassified. Each failure is logged once here.
func (a *API) respondError(c *gin.Context, err error) {
	log.Printf("Data fetch failed: %v", err)

	var configErr *connector.ConfigError
	var upstreamErr *connector.UpstreamError
	var notFoundErr *connector.NotFoundError
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.As(err, &notFoundErr):
		httpapi.RespondWithError(c, http.StatusNotFound, httpapi.CodeNotFound, err.Error(), nil)
	case errors.As(err, &configErr):
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeConfig, err.Error(), nil)
	case errors.As(err, &upstreamErr):
		httpapi.RespondWithError(c, http.StatusBadRequest, httpapi.CodeUpstream, upstreamErr.Message, nil)
	default:
		httpapi.RespondWithError(c, http.StatusInternalServerError, httpapi.CodeInternalError,
			"Failed to fetch data", nil)
	}
}
