package api

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvforge/internal/api/middleware"
	"cvforge/internal/pdf"
)

// PDFHandler 提供同步 PDF 渲染端点。
type PDFHandler struct {
	renderer pdf.Renderer
}

func NewPDFHandler(renderer pdf.Renderer) *PDFHandler {
	return &PDFHandler{renderer: renderer}
}

type generatePDFRequest struct {
	HTML    string `json:"html" binding:"required"`
	Theme   string `json:"theme"`
	Spacing string `json:"spacing"`
}

// GeneratePDF 将客户端渲染好的 HTML 转成 PDF 字节流返回。
// 渲染超时会在一次重试后以 504 上报。
func (h *PDFHandler) GeneratePDF(c *gin.Context) {
	var req generatePDFRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		BadRequest(c, "html must not be empty")
		return
	}

	logger := middleware.LoggerFromContext(c)

	renderInput := applyRenderAttributes(req.HTML,
		strings.TrimSpace(req.Theme), strings.TrimSpace(req.Spacing))

	pdfBytes, err := h.renderer.Render(c.Request.Context(), renderInput)
	if err != nil {
		if errors.Is(err, pdf.ErrRenderTimeout) {
			logger.Warn("pdf render timed out", slog.Any("error", err))
			Error(c, http.StatusGatewayTimeout, "pdf rendering timed out")
			return
		}
		logger.Error("pdf render failed", slog.Any("error", err))
		Internal(c, "pdf rendering failed")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="resume.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// applyRenderAttributes 把主题与间距注入 <html> 标签的 data 属性，
// 样式表按 [data-theme]/[data-spacing] 选择器生效。没有 <html> 标签
// 的片段会被包一层。
func applyRenderAttributes(htmlContent, theme, spacing string) string {
	if theme == "" && spacing == "" {
		return htmlContent
	}

	var attrs strings.Builder
	if theme != "" {
		fmt.Fprintf(&attrs, " data-theme=\"%s\"", html.EscapeString(theme))
	}
	if spacing != "" {
		fmt.Fprintf(&attrs, " data-spacing=\"%s\"", html.EscapeString(spacing))
	}

	if idx := strings.Index(htmlContent, "<html"); idx >= 0 {
		insert := idx + len("<html")
		return htmlContent[:insert] + attrs.String() + htmlContent[insert:]
	}
	return fmt.Sprintf("<html%s><body>%s</body></html>", attrs.String(), htmlContent)
}
