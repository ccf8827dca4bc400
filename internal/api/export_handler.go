package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/resume"
	"cvforge/internal/storage"
	"cvforge/internal/tasks"
)

const exportDownloadURLTTL = 5 * time.Minute

// ExportHandler 负责异步 PDF 导出的入队与状态查询。
type ExportHandler struct {
	db          *gorm.DB
	resume      *ResumeHandler
	asynqClient *asynq.Client
	storage     *storage.Client
}

func NewExportHandler(db *gorm.DB, resumeHandler *ResumeHandler, asynqClient *asynq.Client, storageClient *storage.Client) *ExportHandler {
	return &ExportHandler{
		db:          db,
		resume:      resumeHandler,
		asynqClient: asynqClient,
		storage:     storageClient,
	}
}

type exportRequest struct {
	VariationID string `json:"variation_id" binding:"required"`
}

// StartExport 为指定变体拍下渲染快照并入队导出任务。
func (h *ExportHandler) StartExport(c *gin.Context) {
	user, ok := h.resume.resolveOwnedUser(c)
	if !ok {
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	snapshot, err := resume.BuildSnapshot(ctx, h.db, user.UUID, req.VariationID)
	if err != nil {
		if errors.Is(err, resume.ErrVariationNotFound) {
			NotFound(c, "variation not found")
			return
		}
		logger.Error("build export snapshot failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		logger.Error("marshal export snapshot failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	job := database.ExportJob{
		UUID:        uuid.NewString(),
		UserID:      user.ID,
		VariationID: req.VariationID,
		Status:      database.ExportStatusPending,
		Snapshot:    snapshotJSON,
	}
	if err := h.db.WithContext(ctx).Create(&job).Error; err != nil {
		logger.Error("create export job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	task, err := tasks.NewPDFExportTask(job.ID, middleware.GetCorrelationID(c))
	if err != nil {
		logger.Error("build export task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	info, err := h.asynqClient.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute))
	if err != nil {
		logger.Error("enqueue export task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("export task enqueued",
		slog.String("task_id", info.ID),
		slog.String("export_id", job.UUID),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"task_id":   info.ID,
		"export_id": job.UUID,
	})
}

// ExportStatus 查询导出任务状态，完成后附带限时下载链接。
func (h *ExportHandler) ExportStatus(c *gin.Context) {
	user, ok := h.resume.resolveOwnedUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	var job database.ExportJob
	err := h.db.WithContext(ctx).
		Where("uuid = ? AND user_id = ?", c.Param("exportId"), user.ID).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "export not found")
			return
		}
		logger.Error("query export job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	body := gin.H{
		"export_id":    job.UUID,
		"variation_id": job.VariationID,
		"status":       job.Status,
	}
	if job.Status == database.ExportStatusDone && job.ObjectKey != "" {
		if _, err := h.storage.StatObject(ctx, job.ObjectKey); err != nil {
			// 对象被生命周期策略清走时不再给链接，状态照常返回。
			if !storage.IsNoSuchKey(err) {
				logger.Error("stat export object failed", slog.Any("error", err))
				Internal(c, "internal error")
				return
			}
			logger.Warn("export object missing", slog.String("object_key", job.ObjectKey))
		} else {
			url, err := h.storage.GeneratePresignedURL(ctx, job.ObjectKey, exportDownloadURLTTL)
			if err != nil {
				logger.Error("presign export url failed", slog.Any("error", err))
				Internal(c, "internal error")
				return
			}
			body["download_url"] = url
		}
	}

	c.JSON(http.StatusOK, body)
}
