package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrRenderTimeout 表示无头浏览器渲染超出时间预算。
var ErrRenderTimeout = errors.New("pdf render timed out")

// Renderer 将静态 HTML 渲染为 PDF 字节。
type Renderer interface {
	Render(ctx context.Context, htmlContent string) ([]byte, error)
}

// Generator 使用 go-rod 渲染 PDF，每次调用受超时约束，
// 超时后重试一次（有界重试，避免渲染器挂起拖垮请求）。
type Generator struct {
	timeout time.Duration
}

// NewGenerator 构造渲染器。timeout 必须为正。
func NewGenerator(timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{timeout: timeout}
}

// Render 渲染 HTML，超时重试一次后仍失败则返回 ErrRenderTimeout。
func (g *Generator) Render(ctx context.Context, htmlContent string) ([]byte, error) {
	data, err := g.renderOnce(ctx, htmlContent)
	if errors.Is(err, ErrRenderTimeout) {
		data, err = g.renderOnce(ctx, htmlContent)
	}
	return data, err
}

func (g *Generator) renderOnce(ctx context.Context, htmlContent string) (_ []byte, retErr error) {
	deadline := time.Now().Add(g.timeout)
	defer func() {
		if retErr != nil && (errors.Is(retErr, context.DeadlineExceeded) || time.Now().After(deadline)) {
			retErr = fmt.Errorf("%w: %v", ErrRenderTimeout, retErr)
		}
	}()

	launch := launcher.New().
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().ControlURL(browserURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Timeout(g.timeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	page = page.Timeout(g.timeout)
	if err := page.SetDocumentContent(htmlContent); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}

	return data, nil
}
