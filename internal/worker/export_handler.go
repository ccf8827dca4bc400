package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvforge/internal/database"
	"cvforge/internal/errcode"
	"cvforge/internal/pdf"
	"cvforge/internal/resume"
	"cvforge/internal/tasks"
)

// ObjectStore 是导出结果的存储端，便于在测试中替换 MinIO。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// ExportTaskHandler 负责消费 PDF 导出任务。
type ExportTaskHandler struct {
	db          *gorm.DB
	storage     ObjectStore
	redisClient *redis.Client
	renderer    pdf.Renderer
	logger      *slog.Logger
}

// NewExportTaskHandler 创建任务处理器。
func NewExportTaskHandler(
	db *gorm.DB,
	store ObjectStore,
	redisClient *redis.Client,
	renderer pdf.Renderer,
	logger *slog.Logger,
) *ExportTaskHandler {
	return &ExportTaskHandler{
		db:          db,
		storage:     store,
		redisClient: redisClient,
		renderer:    renderer,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.PDFExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("export_job_id", uint64(payload.ExportJobID)),
	)
	log.Info("starting pdf export task")

	var job database.ExportJob
	if err := h.db.WithContext(ctx).First(&job, payload.ExportJobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("export job not found, skipping task")
			return nil
		}
		log.Error("query export job failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(job.UserID)))

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		if err := h.db.WithContext(ctx).Model(&job).
			Update("status", database.ExportStatusFailed).Error; err != nil {
			log.Error("mark export failed", slog.Any("error", err))
		}

		code := errcode.SystemError
		if errors.Is(retErr, pdf.ErrRenderTimeout) {
			code = errcode.RenderTimeout
		}
		notify := ExportNotifyMessage{
			Status:        "error",
			ExportID:      job.UUID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     code,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishExportNotify(ctx, job.UserID, notify); err != nil {
			log.Error("publish export error notification failed", slog.Any("error", err))
		}
	}()

	var snapshot resume.RenderSnapshot
	if err := json.Unmarshal(job.Snapshot, &snapshot); err != nil {
		log.Error("decode export snapshot failed", slog.Any("error", err))
		return err
	}

	html, err := renderExportHTML(&snapshot)
	if err != nil {
		log.Error("render export html failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := h.renderer.Render(ctx, html)
	if err != nil {
		log.Error("render pdf failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("generated-resumes/%d/%s.pdf", job.UserID, uuid.NewString())
	pdfReader := bytes.NewReader(pdfBytes)
	if _, err := h.storage.UploadFile(ctx, objectName, pdfReader, int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).Model(&job).Updates(map[string]any{
		"object_key": objectName,
		"status":     database.ExportStatusDone,
	}).Error; err != nil {
		log.Error("update export job failed", slog.Any("error", err))
		// 数据库没记录到 object_key，清掉已上传的孤儿对象。
		if delErr := h.storage.DeleteObject(ctx, objectName); delErr != nil {
			log.Error("cleanup orphan export object failed", slog.Any("error", delErr))
		}
		return err
	}

	notify := ExportNotifyMessage{
		Status:        "completed",
		ExportID:      job.UUID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := h.publishExportNotify(ctx, job.UserID, notify); err != nil {
		log.Error("publish export notification failed", slog.Any("error", err))
		return err
	}

	log.Info("pdf export task completed")
	return nil
}

func (h *ExportTaskHandler) publishExportNotify(ctx context.Context, userID uint, notify ExportNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

// NotifyChannel 返回某用户的通知频道名，生产者与 WebSocket 网关共用。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
