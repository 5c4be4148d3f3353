package server

import (
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uplynxed/archivemux/archive"
	"github.com/uplynxed/archivemux/favorites"
	"github.com/uplynxed/archivemux/media"
	"github.com/uplynxed/archivemux/model"
	Logger "github.com/uplynxed/archivemux/utils/log"
	"github.com/uplynxed/archivemux/view"
)

// Filter dimensions accepted as query parameters on the loop routes.
var filterParams = []string{
	model.FilterReply,
	model.FilterRetweet,
	model.FilterMedia,
	model.FilterFavorite,
}

// Handler bundles the built archive with everything serving it.
type Handler struct {
	Archive   *archive.Store
	Engine    *view.Engine
	Favorites *favorites.Store
	Resolver  *media.Resolver

	// Repeated identical searches inside the window serve the cached page,
	// type-ahead clients hammer this route.
	searchMu   sync.Mutex
	lastQuery  string
	lastPage   *view.Page
	lastSearch time.Time
}

const searchCoalesceWindow = 500 * time.Millisecond

// RegisterRoutes attaches every API route to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	for _, name := range []string{view.LoopFeed, view.LoopMedia, view.LoopFavorites, view.LoopAll} {
		api.GET("/"+name, h.loopHandler(name))
	}
	api.GET("/thread/:id", h.threadHandler)
	api.GET("/post/:id", h.postHandler)
	api.GET("/search", h.searchHandler)
	api.POST("/favorites/:id", h.toggleFavoriteHandler)
	api.GET("/media/resolve", h.resolveMediaHandler)
	api.POST("/media/fail", h.failMediaHandler)
	api.POST("/media/purge", h.purgeMediaHandler)
	api.GET("/media/backup", h.backupMediaHandler)

	router.GET("/export/tweets.json", h.exportArchiveHandler)
	router.GET("/export/favorites.json", h.exportFavoritesHandler)
	router.POST("/import/favorites", h.importFavoritesHandler)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
}

// loopHandler serves one named loop. Filter, sort and cutoff parameters are
// applied before paging, the offset parameter makes the route stateless for
// clients that carry their own cursor.
func (h *Handler) loopHandler(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, key := range filterParams {
			if value, ok := c.GetQuery(key); ok {
				if _, err := h.Engine.SetFilter(name, key, value); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
					return
				}
			}
		}
		if order, ok := c.GetQuery("sort"); ok {
			if _, err := h.Engine.SetSort(name, order); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
				return
			}
		}
		if cutoff, ok := c.GetQuery("cutoff"); ok {
			enabled, err := strconv.ParseBool(cutoff)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"msg": "cutoff must be a boolean"})
				return
			}
			if _, err := h.Engine.SetCutoff(name, enabled); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
				return
			}
		}

		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		page, err := h.Engine.PageAt(name, offset)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func (h *Handler) threadHandler(c *gin.Context) {
	page := h.Engine.Thread(c.Param("id"))
	c.JSON(statusFor(page), page)
}

func (h *Handler) postHandler(c *gin.Context) {
	page := h.Engine.Single(c.Param("id"))
	c.JSON(statusFor(page), page)
}

func (h *Handler) searchHandler(c *gin.Context) {
	query := c.Query("q")

	h.searchMu.Lock()
	if query == h.lastQuery && h.lastPage != nil &&
		time.Since(h.lastSearch) < searchCoalesceWindow {
		page := h.lastPage
		h.searchMu.Unlock()
		c.JSON(http.StatusOK, page)
		return
	}
	h.searchMu.Unlock()

	page := h.Engine.Search(query)

	h.searchMu.Lock()
	h.lastQuery, h.lastPage, h.lastSearch = query, page, time.Now()
	h.searchMu.Unlock()

	c.JSON(http.StatusOK, page)
}

func (h *Handler) toggleFavoriteHandler(c *gin.Context) {
	favorited, found := h.Favorites.Toggle(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"state": view.PageNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "favorited": favorited})
}

func (h *Handler) resolveMediaHandler(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "url parameter required"})
		return
	}
	entry := h.Resolver.Resolve(url)
	c.JSON(http.StatusOK, gin.H{
		"replacement": entry,
		"sources":     h.Resolver.Sources(entry),
	})
}

func (h *Handler) failMediaHandler(c *gin.Context) {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "url field required"})
		return
	}
	resolved := h.Resolver.Fail(body.URL)
	c.JSON(http.StatusOK, gin.H{"resolved": resolved})
}

func (h *Handler) purgeMediaHandler(c *gin.Context) {
	target := c.DefaultQuery("target", "all")
	h.Resolver.Purge(target)
	c.JSON(http.StatusOK, gin.H{"purged": target})
}

func (h *Handler) backupMediaHandler(c *gin.Context) {
	items := media.BackupList(h.Archive)
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) exportArchiveHandler(c *gin.Context) {
	export, err := h.Archive.Snapshot()
	if err != nil {
		Logger.Log.Error("fail to export archive: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "export failed"})
		return
	}
	c.JSON(http.StatusOK, export)
}

func (h *Handler) exportFavoritesHandler(c *gin.Context) {
	posts, err := h.Favorites.Export()
	if err != nil {
		Logger.Log.Error("fail to export favorites: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "export failed"})
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) importFavoritesHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "fail to read body"})
		return
	}
	if err := h.Favorites.Import(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": len(h.Favorites.IDs())})
}

func statusFor(page *view.Page) int {
	if page.State == view.PageNotFound {
		return http.StatusNotFound
	}
	return http.StatusOK
}
