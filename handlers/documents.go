package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docsmith/docsmith/internal/doc"
	"github.com/docsmith/docsmith/internal/preview"
	"github.com/docsmith/docsmith/pkg/logger"
)

var httpLog = logger.For("http")

// Deps collects what the document routes need. Handlers stay thin: they
// translate HTTP into engine calls and error kinds into status codes.
type Deps struct {
	Engine   *doc.Engine
	Locker   *doc.Locker
	Previews *preview.Service
}

func RegisterDocumentRoutes(r gin.IRoutes, d Deps) {
	r.POST("/api/docs", d.insert)
	r.PUT("/api/docs/:id", d.update)
	r.GET("/api/docs/:id", d.get)
	r.DELETE("/api/docs/:id", d.softDelete)
	r.POST("/api/docs/:id/lock", d.lock)
	r.POST("/api/docs/:id/unlock", d.unlock)
	r.POST("/api/docs/:id/preview", d.preview)
}

func (d Deps) insert(c *gin.Context) {
	var body doc.Document
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := d.Engine.Insert(c.Request.Context(), body, doc.Options{})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (d Deps) update(c *gin.Context) {
	var body doc.Document
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	body[doc.FieldID] = c.Param("id")
	saved, err := d.Engine.Update(c.Request.Context(), body, doc.Options{})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// get fetches by id. A previewKey query parameter substitutes the cached
// patched document for the stored one, which is how render paths show
// unsaved changes.
func (d Deps) get(c *gin.Context) {
	if key := c.Query(preview.QueryParam); key != "" {
		cached, err := d.Previews.Resolve(c.Request.Context(), key)
		if err != nil {
			respondError(c, err)
			return
		}
		// a key minted for a different document must not substitute here
		if cached != nil && cached.ID() == c.Param("id") {
			c.JSON(http.StatusOK, cached)
			return
		}
		// expired, unknown or mismatched key falls through to the stored document
	}
	found, err := d.Engine.Store().FindOne(c.Request.Context(), map[string]any{doc.FieldID: c.Param("id")})
	if errors.Is(err, doc.ErrNoDocument) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// softDelete marks the document trashed through the ordinary update path, so
// permissions and lifecycle events still apply. Physical removal is not an
// operation this service exposes.
func (d Deps) softDelete(c *gin.Context) {
	found, err := d.Engine.Store().FindOne(c.Request.Context(), map[string]any{doc.FieldID: c.Param("id")})
	if errors.Is(err, doc.ErrNoDocument) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	found[doc.FieldTrash] = true
	if _, err := d.Engine.Update(c.Request.Context(), found, doc.Options{}); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type lockRequest struct {
	ContextToken string `json:"contextToken" binding:"required"`
	Force        bool   `json:"force"`
}

func (d Deps) lock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target := doc.Document{doc.FieldID: c.Param("id")}
	if err := d.Locker.Lock(c.Request.Context(), target, req.ContextToken, doc.LockOptions{Force: req.Force}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advisoryLock": target[doc.FieldAdvisoryLock]})
}

func (d Deps) unlock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target := doc.Document{doc.FieldID: c.Param("id")}
	if err := d.Locker.Unlock(c.Request.Context(), target, req.ContextToken); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type previewRequest struct {
	URL     string           `json:"url" binding:"required"`
	Type    string           `json:"type" binding:"required"`
	Patches []map[string]any `json:"patches"`
}

func (d Deps) preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := d.Previews.PreviewPatched(c.Request.Context(), req.URL, c.Param("id"), req.Type, req.Patches)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u})
}

// respondError maps error kinds onto HTTP statuses. Internal-misuse detail
// is logged, never echoed to the client.
func respondError(c *gin.Context, err error) {
	var locked *doc.LockedError
	if errors.As(err, &locked) {
		body := gin.H{"error": "locked"}
		if locked.Self {
			body["self"] = true
		} else {
			body["username"] = locked.Username
			body["title"] = locked.Title
		}
		c.JSON(http.StatusConflict, body)
		return
	}
	switch doc.KindOf(err) {
	case doc.KindInvalid:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case doc.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case doc.KindForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case doc.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case doc.KindInternalMisuse:
		httpLog.Errorf("internal misuse: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		httpLog.Errorf("unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
