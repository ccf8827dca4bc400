package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvforge/internal/database"
	"cvforge/internal/tasks"
)

type fakeStore struct {
	uploaded map[string][]byte
}

func (s *fakeStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	if s.uploaded == nil {
		s.uploaded = map[string][]byte{}
	}
	s.uploaded[objectName] = b
	return &minio.UploadInfo{}, nil
}

func (s *fakeStore) DeleteObject(_ context.Context, objectKey string) error {
	delete(s.uploaded, objectKey)
	return nil
}

type fakeRenderer struct {
	out []byte
	err error
}

func (r *fakeRenderer) Render(context.Context, string) ([]byte, error) {
	return r.out, r.err
}

func newWorkerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newUnreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestProcessTaskUnknownJobIsDropped(t *testing.T) {
	db := newWorkerTestDB(t)
	handler := NewExportTaskHandler(db, &fakeStore{}, newUnreachableRedis(t), &fakeRenderer{}, slog.Default())

	task, err := tasks.NewPDFExportTask(999, "corr-1")
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	// A job that no longer exists must not be retried.
	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newWorkerTestDB(t)
	handler := NewExportTaskHandler(db, &fakeStore{}, newUnreachableRedis(t), &fakeRenderer{}, slog.Default())

	task := asynq.NewTask(tasks.TypePDFExport, []byte("not json"))
	if err := handler.ProcessTask(context.Background(), task); err == nil {
		t.Fatalf("malformed payload accepted")
	}
}

func TestProcessTaskRendersAndUploads(t *testing.T) {
	db := newWorkerTestDB(t)
	store := &fakeStore{}
	// Success-path notification publishing is the last step; with Redis down
	// the handler reports an error even though render and upload succeeded,
	// so the persisted state is what this test asserts on.
	handler := NewExportTaskHandler(db, store, newUnreachableRedis(t), &fakeRenderer{out: []byte("%PDF")}, slog.Default())

	job := database.ExportJob{
		UserID:      1,
		VariationID: uuid.NewString(),
		Status:      database.ExportStatusPending,
		Snapshot:    []byte(`{"full_name":"Ada","sections":[]}`),
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	task, err := tasks.NewPDFExportTask(job.ID, "corr-2")
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	_ = handler.ProcessTask(context.Background(), task)

	if len(store.uploaded) != 1 {
		t.Fatalf("uploads = %d, want 1", len(store.uploaded))
	}
	for name, data := range store.uploaded {
		if string(data) != "%PDF" {
			t.Errorf("uploaded bytes = %q", data)
		}
		if want := fmt.Sprintf("generated-resumes/%d/", job.UserID); len(name) == 0 || name[:len(want)] != want {
			t.Errorf("object name = %q", name)
		}
	}

	var reloaded database.ExportJob
	if err := db.First(&reloaded, job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if reloaded.Status != database.ExportStatusDone {
		t.Errorf("status = %q, want done", reloaded.Status)
	}
	if reloaded.ObjectKey == "" {
		t.Errorf("object key not recorded")
	}
}
