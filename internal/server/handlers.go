package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/command"
	"github.com/ArionMiles/spendscan/pkg/ocr"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "spendscan",
	})
}

type parseRequest struct {
	Text  string   `json:"text"`
	Texts []string `json:"texts"`
}

// ParseResult is the response for one parsed text.
type ParseResult struct {
	Result api.ParsedExpenseInfo `json:"result"`
	// Usable reports whether the result passes validation.
	Usable   bool          `json:"usable"`
	Category *api.Category `json:"category,omitempty"`
	Account  *api.Account  `json:"account,omitempty"`
}

func (s *Server) parseOne(text string) ParseResult {
	info := s.deps.Parser.Parse(text)
	category, account := s.deps.Directory.Match(info)
	return ParseResult{
		Result:   info,
		Usable:   s.deps.Parser.Validate(info),
		Category: category,
		Account:  account,
	}
}

func (s *Server) parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch {
	case len(req.Texts) > 0:
		results := make([]ParseResult, len(req.Texts))
		for i, t := range req.Texts {
			results[i] = s.parseOne(t)
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	case req.Text != "":
		c.JSON(http.StatusOK, s.parseOne(req.Text))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
	}
}

func (s *Server) directory(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Directory)
}

func (s *Server) addExpense(c *gin.Context) {
	req, err := command.FromQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	expense, err := s.resolver.Resolve(req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, command.ErrInvalidAmount) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := s.deps.Store.Save(c.Request.Context(), expense); err != nil {
		s.logger.Error("saving expense", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "保存失败: " + err.Error()})
		return
	}

	s.logger.Info("expense added", "id", expense.ID, "amount", expense.Amount.StringFixed(2), "category", expense.Category)
	c.JSON(http.StatusCreated, gin.H{"success": true, "expense": expense})
}

func (s *Server) listExpenses(c *gin.Context) {
	lister, ok := s.deps.Store.(Lister)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "store cannot list expenses"})
		return
	}

	limit := DefaultExpenseLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	expenses, err := lister.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("listing expenses", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing expenses failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expenses": expenses})
}

func (s *Server) batch(c *gin.Context) {
	if s.deps.Batch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": ocr.ErrEngineNotFound.Error()})
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["images"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": ocr.ErrInvalidImage.Error()})
		return
	}

	dir, err := os.MkdirTemp("", "spendscan-batch-")
	if err != nil {
		s.logger.Error("creating upload directory", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": ocr.ErrProcessingFailed.Error()})
		return
	}
	defer os.RemoveAll(dir)

	files := form.File["images"]
	paths := make([]string, 0, len(files))
	for i, fh := range files {
		// Index prefix keeps duplicate client file names apart.
		path := filepath.Join(dir, strconv.Itoa(i)+"_"+filepath.Base(fh.Filename))
		if err := c.SaveUploadedFile(fh, path); err != nil {
			s.logger.Error("saving upload", "file", fh.Filename, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": ocr.ErrProcessingFailed.Error()})
			return
		}
		paths = append(paths, path)
	}

	summary := s.deps.Batch.Process(c.Request.Context(), paths)
	status := http.StatusOK
	if !summary.Success() {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"success": summary.Success(),
		"message": summary.Message(),
		"summary": summary,
	})
}
