package ui

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"datalens/domain/filter"
	"datalens/domain/plot"
	"datalens/internal/errors"
)

func (s *Server) handleIndex(c *gin.Context) {
	ex := s.explorer(c)
	c.Header("Content-Type", "text/html")
	if err := s.templates.ExecuteTemplate(c.Writer, "index.html", ex.State()); err != nil {
		s.log.Error("[UI] template error: %v", err)
		c.String(http.StatusInternalServerError, "template error")
	}
}

func (s *Server) handleUpload(c *gin.Context) {
	ex := s.explorer(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
		return
	}
	defer file.Close()

	if err := ex.UploadCSV(c.Request.Context(), fileHeader.Filename, file); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ex.State())
}

func (s *Server) handleRemoveNA(c *gin.Context) {
	ex := s.explorer(c)

	var req struct {
		Columns []string `json:"columns"`
	}
	// An empty body means "all columns"; anything else must parse.
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed remove request"})
		return
	}

	if err := ex.RemoveNA(c.Request.Context(), req.Columns); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ex.State())
}

func (s *Server) handleFilter(c *gin.Context) {
	ex := s.explorer(c)

	var req struct {
		Column string        `json:"column"`
		Values []interface{} `json:"values"`
		Min    *float64      `json:"min"`
		Max    *float64      `json:"max"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed filter request"})
		return
	}

	sel := filter.Selection{Column: req.Column, Values: req.Values}
	if req.Min != nil && req.Max != nil {
		sel.Values = nil
		sel.Range = &filter.NumericRange{Min: *req.Min, Max: *req.Max}
	}

	if err := ex.ApplyFilter(c.Request.Context(), sel); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ex.State())
}

func (s *Server) handleSelectColumn(c *gin.Context) {
	ex := s.explorer(c)

	var req struct {
		Column string `json:"column"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed column request"})
		return
	}

	choices, err := ex.SelectFilterColumn(c.Request.Context(), req.Column)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"choices": choices})
}

func (s *Server) handlePlot(c *gin.Context) {
	ex := s.explorer(c)

	var form plot.Form
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed plot request"})
		return
	}

	fig, err := ex.RequestPlot(c.Request.Context(), form)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"figure": fig})
}

func (s *Server) handlePlotReset(c *gin.Context) {
	ex := s.explorer(c)
	ex.ResetPlot()
	c.JSON(http.StatusOK, ex.State())
}

func (s *Server) handleFigure(c *gin.Context) {
	ex := s.explorer(c)
	fig := s.figures.Latest(ex.ID().String())
	if fig == nil {
		fig = ex.Figure()
	}
	if fig == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no figure rendered yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"figure": fig})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.explorer(c).State())
}

func (s *Server) handleExport(c *gin.Context) {
	ex := s.explorer(c)
	view := ex.State()
	if !view.Loaded {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data uploaded yet"})
		return
	}

	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, view.Dataset, view.Describe); err != nil {
		s.log.Error("[UI] export failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	filename := "datalens_" + time.Now().Format("20060102_150405") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (s *Server) handleActions(c *gin.Context) {
	if s.actions == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "action log not configured"})
		return
	}
	actions, err := s.actions.Recent(c.Request.Context(), 50)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions, "count": len(actions)})
}

// respondError maps error codes onto HTTP statuses. Every failure also
// lands in the session's message slot, so the state payload carries it.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeValidationError:
		status = http.StatusBadRequest
	case errors.CodeTransportError, errors.CodeStructuralError:
		status = http.StatusBadGateway
	case errors.CodeDatabaseError:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}
