package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mwantia/gophotos/internal/library"
	"github.com/mwantia/gophotos/internal/photos"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/remote"
)

type Syncer interface {
	Sync(ctx context.Context, drive remote.TargetDrive) error
}

type Libraries interface {
	Get(ctx context.Context, drive remote.TargetDrive, t library.Type) (*library.Metadata, error)
}

type Photos interface {
	FetchMonth(ctx context.Context, drive remote.TargetDrive, t library.Type, year, month int) ([]photos.Photo, error)
	GetPhoto(ctx context.Context, drive remote.TargetDrive, fileID string) (*photos.Photo, error)
	Archive(ctx context.Context, drive remote.TargetDrive, fileID string) error
	Restore(ctx context.Context, drive remote.TargetDrive, fileID string) error
	MoveToBin(ctx context.Context, drive remote.TargetDrive, fileID string) error
	AddTag(ctx context.Context, drive remote.TargetDrive, fileID, tag string) error
	RemoveTag(ctx context.Context, drive remote.TargetDrive, fileID, tag string) error
	SetUserDate(ctx context.Context, drive remote.TargetDrive, fileID string, date time.Time) error
	RegisterUploaded(ctx context.Context, drive remote.TargetDrive, fileID string) error
	FindByUniqueID(ctx context.Context, drive remote.TargetDrive, uniqueID string) (*photos.Photo, error)
}

type RangeSelector interface {
	SelectRange(ctx context.Context, drive remote.TargetDrive, t library.Type, fromID, toID string) ([]string, error)
}

type Handler struct {
	Drive     remote.TargetDrive
	Syncer    Syncer
	Libraries Libraries
	Photos    Photos
	Selector  RangeSelector
	Log       log.LoggerService
}

type rangeRequest struct {
	Type   string `json:"type"`
	FromID string `json:"fromFileId" binding:"required"`
	ToID   string `json:"toFileId"   binding:"required"`
}

type tagRequest struct {
	TagID string `json:"tagId" binding:"required"`
}

type dateRequest struct {
	// UserDate in Unix milliseconds, zero resets to the creation time.
	UserDate int64 `json:"userDate"`
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Msg: "Pong"})
}

func (h *Handler) Sync(c *gin.Context) {
	if err := h.Syncer.Sync(c.Request.Context(), h.Drive); err != nil {
		h.Log.Error("Sync requested by API failed: %v", err)
		c.JSON(http.StatusOK, Err(CodeSyncFailed, "Sync failed", err))
		return
	}
	c.JSON(http.StatusOK, OK(nil))
}

func (h *Handler) Library(c *gin.Context) {
	t, err := library.ParseType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusOK, ParamErr("Unknown library type", err))
		return
	}

	md, err := h.Libraries.Get(c.Request.Context(), h.Drive, t)
	if err != nil {
		c.JSON(http.StatusOK, FromError("Failed to load library", err))
		return
	}
	c.JSON(http.StatusOK, OK(md))
}

func (h *Handler) Month(c *gin.Context) {
	t, err := library.ParseType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusOK, ParamErr("Unknown library type", err))
		return
	}

	year, yerr := strconv.Atoi(c.Param("year"))
	month, merr := strconv.Atoi(c.Param("month"))
	if yerr != nil || merr != nil || month < 1 || month > 12 {
		c.JSON(http.StatusOK, ParamErr("Invalid month", nil))
		return
	}

	list, err := h.Photos.FetchMonth(c.Request.Context(), h.Drive, t, year, month)
	if err != nil {
		c.JSON(http.StatusOK, FromError("Failed to list photos", err))
		return
	}
	if list == nil {
		list = []photos.Photo{}
	}
	c.JSON(http.StatusOK, OK(list))
}

func (h *Handler) Photo(c *gin.Context) {
	photo, err := h.Photos.GetPhoto(c.Request.Context(), h.Drive, c.Param("fileId"))
	if err != nil {
		c.JSON(http.StatusOK, FromError("Failed to load photo", err))
		return
	}
	c.JSON(http.StatusOK, OK(photo))
}

// Upload answers whether the asset with uniqueId was already uploaded.
func (h *Handler) Upload(c *gin.Context) {
	photo, err := h.Photos.FindByUniqueID(c.Request.Context(), h.Drive, c.Param("uniqueId"))
	if err != nil {
		c.JSON(http.StatusOK, FromError("Failed to look up upload", err))
		return
	}
	c.JSON(http.StatusOK, OK(photo))
}

func (h *Handler) SelectRange(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, ParamErr("", err))
		return
	}

	t := library.TypePhotos
	if req.Type != "" {
		parsed, err := library.ParseType(req.Type)
		if err != nil {
			c.JSON(http.StatusOK, ParamErr("Unknown library type", err))
			return
		}
		t = parsed
	}

	ids, err := h.Selector.SelectRange(c.Request.Context(), h.Drive, t, req.FromID, req.ToID)
	if err != nil {
		c.JSON(http.StatusOK, FromError("Failed to select range", err))
		return
	}
	c.JSON(http.StatusOK, OK(ids))
}

// mutation adapts a photo mutation to a handler.
func (h *Handler) mutation(fn func(ctx context.Context, drive remote.TargetDrive, fileID string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.reply(c, fn(c.Request.Context(), h.Drive, c.Param("fileId")))
	}
}

func (h *Handler) AddTag(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, ParamErr("", err))
		return
	}
	h.reply(c, h.Photos.AddTag(c.Request.Context(), h.Drive, c.Param("fileId"), req.TagID))
}

func (h *Handler) RemoveTag(c *gin.Context) {
	h.reply(c, h.Photos.RemoveTag(c.Request.Context(), h.Drive, c.Param("fileId"), c.Param("tagId")))
}

func (h *Handler) SetUserDate(c *gin.Context) {
	var req dateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, ParamErr("", err))
		return
	}

	var date time.Time
	if req.UserDate != 0 {
		date = time.UnixMilli(req.UserDate)
	}
	h.reply(c, h.Photos.SetUserDate(c.Request.Context(), h.Drive, c.Param("fileId"), date))
}

func (h *Handler) reply(c *gin.Context, err error) {
	if err != nil {
		h.Log.Warn("Photo mutation on %s failed: %v", c.Param("fileId"), err)
		c.JSON(http.StatusOK, FromError("Failed to update photo", err))
		return
	}
	c.JSON(http.StatusOK, OK(nil))
}
