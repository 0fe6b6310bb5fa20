package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"photo-gallery/internal/ai"
	"photo-gallery/internal/importer"
	"photo-gallery/internal/models"
	"photo-gallery/internal/processing"
	"photo-gallery/internal/storage"
	"photo-gallery/internal/tagging"
)

type Server struct {
	cfg      *models.Config
	router   *gin.Engine
	db       *storage.Storage
	enricher *processing.Enricher
	importer *importer.Importer
	queue    *tagging.Queue
	ai       *ai.Client
	log      *slog.Logger
}

func NewServer(cfg *models.Config, db *storage.Storage, enricher *processing.Enricher,
	imp *importer.Importer, queue *tagging.Queue, aiClient *ai.Client, log *slog.Logger) *Server {

	r := gin.Default()
	r.Static("/files", cfg.StoragePath)

	s := &Server{cfg: cfg, router: r, db: db, enricher: enricher,
		importer: imp, queue: queue, ai: aiClient, log: log}

	v1 := r.Group("/api/v1")
	v1.POST("/photos/upload", s.handleUpload)
	v1.GET("/photos", s.handleListPhotos)
	v1.GET("/photos/:id", s.handleGetPhoto)
	v1.DELETE("/photos/:id", s.handleDeletePhoto)
	v1.POST("/photos/:id/analyze", s.handleAnalyzePhoto)
	v1.POST("/import", s.handleImport)
	v1.GET("/import/validate", s.handleValidateImportPath)

	return s
}

func (s *Server) Start() error {
	return s.router.Run(s.cfg.ServerAddr)
}

func (s *Server) Stop() {
	// No shutdown needed for gin
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be an image"})
		return
	}

	season := c.PostForm("season")
	if season != "" && !models.ValidSeason(season) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "season must be one of: " + strings.Join(models.Seasons, ", ")})
		return
	}
	category := c.PostForm("category")
	if category != "" && !models.ValidCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category must be one of: " + strings.Join(models.Categories, ", ")})
		return
	}

	id := uuid.New().String()
	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	originalPath := filepath.Join(s.cfg.StoragePath, "originals", id+ext)
	if err := os.MkdirAll(filepath.Dir(originalPath), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	f, err := os.Create(originalPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	defer f.Close()

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	defer src.Close()

	if _, err := io.Copy(f, src); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	// Enrichment is synchronous on purpose: the response carries the
	// thumbnail path and dimensions.
	enr := s.enricher.Enrich(originalPath, id)

	processingStatus := models.ProcessingCompleted
	if s.ai.Enabled() && season == "" && category == "" {
		processingStatus = models.ProcessingPending
	}

	var size *int64
	if info, err := os.Stat(originalPath); err == nil {
		v := info.Size()
		size = &v
	}

	photo := &models.Photo{
		ID:               id,
		Filename:         file.Filename,
		OriginalPath:     originalPath,
		ThumbPath:        enr.ThumbPath,
		Width:            enr.Width,
		Height:           enr.Height,
		FileSize:         size,
		MimeType:         contentType,
		Season:           season,
		Category:         category,
		Description:      c.PostForm("description"),
		EXIFData:         enr.EXIF,
		CapturedAt:       enr.CapturedAt,
		Status:           models.StatusPending,
		ProcessingStatus: processingStatus,
	}
	if err := s.db.CreatePhoto(c.Request.Context(), photo); err != nil {
		os.Remove(originalPath)
		if enr.ThumbPath != "" {
			os.Remove(enr.ThumbPath)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	// Hand the photo off to the tagging consumer; the task runs after this
	// response has been sent.
	if processingStatus == models.ProcessingPending {
		if err := s.queue.Enqueue(c.Request.Context(), id); err != nil {
			s.log.Error("enqueue tagging task failed", "photo", id, "err", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":                id,
		"filename":          photo.Filename,
		"thumb_path":        photo.ThumbPath,
		"width":             photo.Width,
		"height":            photo.Height,
		"status":            photo.Status,
		"processing_status": photo.ProcessingStatus,
		"message":           "photo uploaded successfully",
	})
}

func (s *Server) handleGetPhoto(c *gin.Context) {
	const op = "server.handleGetPhoto"

	photo, err := s.db.GetPhoto(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	tags, err := s.db.GetPhotoTags(c.Request.Context(), photo.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}

	c.JSON(http.StatusOK, gin.H{"photo": photo, "tags": names})
}

func (s *Server) handleListPhotos(c *gin.Context) {
	const op = "server.handleListPhotos"

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	photos, total, err := s.db.ListPhotos(c.Request.Context(), storage.ListFilter{
		Status:   c.Query("status"),
		Season:   c.Query("season"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": total, "items": photos})
}

func (s *Server) handleDeletePhoto(c *gin.Context) {
	const op = "server.handleDeletePhoto"

	photo, err := s.db.GetPhoto(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	for _, f := range []string{photo.OriginalPath, photo.ThumbPath, photo.ProcessedPath} {
		if f != "" {
			os.Remove(f)
		}
	}
	if err := s.db.DeletePhoto(c.Request.Context(), photo.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.Status(http.StatusNoContent)
}

// handleAnalyzePhoto re-enqueues the tagging task for a photo.
func (s *Server) handleAnalyzePhoto(c *gin.Context) {
	const op = "server.handleAnalyzePhoto"

	if !s.ai.Enabled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ai tagging is disabled"})
		return
	}

	photo, err := s.db.GetPhoto(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}
	if photo.ProcessingStatus == models.ProcessingManual {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo was classified manually"})
		return
	}

	if err := s.queue.Enqueue(c.Request.Context(), photo.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": photo.ID, "message": "analysis scheduled"})
}

type importRequest struct {
	JSONPath    string `json:"json_path" binding:"required"`
	ImageFolder string `json:"image_folder"`
}

// handleImport runs the batch reconciliation synchronously. Per-record
// failures are reported inside the outcome, not as an HTTP error; only a
// nonexistent path is rejected up front.
func (s *Server) handleImport(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := os.Stat(req.JSONPath); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("path does not exist: %s", req.JSONPath)})
		return
	}

	outcome := s.importer.Run(c.Request.Context(), req.JSONPath, req.ImageFolder)
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) handleValidateImportPath(c *gin.Context) {
	jsonPath := c.Query("json_path")
	info, err := os.Stat(jsonPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("path does not exist: %s", jsonPath)})
		return
	}

	manifests := importer.ScanManifests(jsonPath)
	preview := manifests
	if len(preview) > 10 {
		preview = preview[:10]
	}
	c.JSON(http.StatusOK, gin.H{
		"path":             jsonPath,
		"exists":           true,
		"is_file":          !info.IsDir(),
		"is_directory":     info.IsDir(),
		"json_files_count": len(manifests),
		"json_files":       preview,
	})
}
