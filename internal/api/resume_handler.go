package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/resume"
)

// ResumeHandler 负责简历聚合与变体相关的 API 请求。
type ResumeHandler struct {
	db *gorm.DB
}

// NewResumeHandler 构造 ResumeHandler。
func NewResumeHandler(db *gorm.DB) *ResumeHandler {
	return &ResumeHandler{db: db}
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, ok := c.Get("userID")
	if !ok {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

// resolveOwnedUser 将路径里的用户 UUID 解析为数据库记录，并做归属校验。
// 他人的 UUID 一律返回 404，避免泄露账号是否存在。
func (h *ResumeHandler) resolveOwnedUser(c *gin.Context) (*database.User, bool) {
	authUserID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}

	userUUID := strings.TrimSpace(c.Param("userId"))
	if userUUID == "" {
		NotFound(c, "user not found")
		return nil, false
	}

	var user database.User
	err := h.db.WithContext(c.Request.Context()).
		Where("uuid = ?", userUUID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "user not found")
			return nil, false
		}
		middleware.LoggerFromContext(c).Error("resolve user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, false
	}

	if user.ID != authUserID {
		NotFound(c, "user not found")
		return nil, false
	}
	return &user, true
}

// GetResume 返回整棵简历聚合，空账号会先补出默认变体与起始段落。
func (h *ResumeHandler) GetResume(c *gin.Context) {
	user, ok := h.resolveOwnedUser(c)
	if !ok {
		return
	}

	aggregate, err := resume.Load(c.Request.Context(), h.db, user.UUID)
	if err != nil {
		if errors.Is(err, resume.ErrUserNotFound) {
			NotFound(c, "user not found")
			return
		}
		middleware.LoggerFromContext(c).Error("load resume failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, aggregate)
}

// SaveResume 全量保存简历聚合。缺席的段落、职位与要点会被删除。
func (h *ResumeHandler) SaveResume(c *gin.Context) {
	user, ok := h.resolveOwnedUser(c)
	if !ok {
		return
	}

	var payload resume.Aggregate
	if err := c.ShouldBindJSON(&payload); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := resume.Save(c.Request.Context(), h.db, user.UUID, &payload); err != nil {
		if errors.Is(err, resume.ErrUserNotFound) {
			NotFound(c, "user not found")
			return
		}
		middleware.LoggerFromContext(c).Error("save resume failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

type createVariationRequest struct {
	SourceVariationID string `json:"source_variation_id" binding:"required"`
	Name              string `json:"name" binding:"required,max=120"`
}

// CreateVariation 基于既有变体克隆出新变体，继承其可见性配置。
func (h *ResumeHandler) CreateVariation(c *gin.Context) {
	user, ok := h.resolveOwnedUser(c)
	if !ok {
		return
	}

	var req createVariationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	info, err := resume.CreateVariation(c.Request.Context(), h.db, user.UUID, req.SourceVariationID, req.Name)
	if err != nil {
		if errors.Is(err, resume.ErrVariationNotFound) {
			NotFound(c, "variation not found")
			return
		}
		middleware.LoggerFromContext(c).Error("create variation failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusCreated, info)
}

type renameVariationRequest struct {
	Name string `json:"name" binding:"required,max=120"`
}

// RenameVariation 重命名变体。
func (h *ResumeHandler) RenameVariation(c *gin.Context) {
	user, ok := h.resolveOwnedUser(c)
	if !ok {
		return
	}

	var req renameVariationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	variationUUID := c.Param("variationId")
	err := resume.RenameVariation(c.Request.Context(), h.db, user.UUID, variationUUID, req.Name)
	if err != nil {
		if errors.Is(err, resume.ErrVariationNotFound) {
			NotFound(c, "variation not found")
			return
		}
		middleware.LoggerFromContext(c).Error("rename variation failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "renamed"})
}

// SetDefaultVariation 将指定变体设为默认，其余变体同时降级。
func (h *ResumeHandler) SetDefaultVariation(c *gin.Context) {
	user, ok := h.resolveOwnedUser(c)
	if !ok {
		return
	}

	variationUUID := c.Param("variationId")
	err := resume.SetDefaultVariation(c.Request.Context(), h.db, user.UUID, variationUUID)
	if err != nil {
		if errors.Is(err, resume.ErrVariationNotFound) {
			NotFound(c, "variation not found")
			return
		}
		middleware.LoggerFromContext(c).Error("set default variation failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "default set"})
}

// DeleteVariation 删除变体。最后一个变体不允许删除。
func (h *ResumeHandler) DeleteVariation(c *gin.Context) {
	user, ok := h.resolveOwnedUser(c)
	if !ok {
		return
	}

	variationUUID := c.Param("variationId")
	err := resume.DeleteVariation(c.Request.Context(), h.db, user.UUID, variationUUID)
	if err != nil {
		switch {
		case errors.Is(err, resume.ErrVariationNotFound):
			NotFound(c, "variation not found")
		case errors.Is(err, resume.ErrLastVariation):
			BadRequest(c, "cannot delete the last variation")
		default:
			middleware.LoggerFromContext(c).Error("delete variation failed", slog.Any("error", err))
			Internal(c, "internal error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
