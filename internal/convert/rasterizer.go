// Пакет convert — растеризация презентаций во внешних конвертерах.
// Конвейер: PPT/PPTX → PDF (LibreOffice headless) → PNG постранично
// (pdftoppm из Poppler). Сами конвертеры — чёрные ящики, вызываемые
// через os/exec с таймаутом; их форматы и рендеринг здесь не
// переопределяются.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// pagePrefix — префикс имён постраничных PNG от pdftoppm.
const pagePrefix = "page"

// Rasterizer — растеризатор презентаций.
type Rasterizer struct {
	sofficeBin  string
	pdftoppmBin string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewRasterizer создаёт растеризатор с указанными путями к бинарям.
func NewRasterizer(sofficeBin, pdftoppmBin string, timeout time.Duration, logger *slog.Logger) *Rasterizer {
	return &Rasterizer{
		sofficeBin:  sofficeBin,
		pdftoppmBin: pdftoppmBin,
		timeout:     timeout,
		logger:      logger.With(slog.String("component", "rasterizer")),
	}
}

// Rasterize преобразует документ inputPath (ppt, pptx или готовый pdf)
// в постраничные PNG внутри workDir. Возвращает отсортированный список
// путей к страницам. Все промежуточные артефакты остаются в workDir,
// уборка — ответственность вызывающего кода.
func (r *Rasterizer) Rasterize(ctx context.Context, inputPath, workDir string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pdfPath := inputPath
	if strings.ToLower(filepath.Ext(inputPath)) != ".pdf" {
		var err error
		pdfPath, err = r.toPDF(ctx, inputPath, workDir)
		if err != nil {
			return nil, err
		}
	}

	return r.toPages(ctx, pdfPath, workDir)
}

// toPDF конвертирует презентацию в PDF через LibreOffice headless.
func (r *Rasterizer) toPDF(ctx context.Context, inputPath, workDir string) (string, error) {
	args := sofficeArgs(inputPath, workDir)

	cmd := exec.CommandContext(ctx, r.sofficeBin, args...)
	// У LibreOffice общий профиль на пользователя: отдельный каталог
	// профиля позволяет параллельные конвертации.
	cmd.Env = append(os.Environ(), "HOME="+workDir)

	out, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Error("LibreOffice завершился ошибкой",
			slog.String("input", inputPath),
			slog.String("output", truncate(string(out), 1024)),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("конвертация в PDF: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	pdfPath := filepath.Join(workDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("LibreOffice не создал PDF %s: %w", pdfPath, err)
	}

	return pdfPath, nil
}

// toPages растеризует PDF в постраничные PNG через pdftoppm.
func (r *Rasterizer) toPages(ctx context.Context, pdfPath, workDir string) ([]string, error) {
	args := pdftoppmArgs(pdfPath, filepath.Join(workDir, pagePrefix))

	cmd := exec.CommandContext(ctx, r.pdftoppmBin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Error("pdftoppm завершился ошибкой",
			slog.String("pdf", pdfPath),
			slog.String("output", truncate(string(out), 1024)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("растеризация PDF: %w", err)
	}

	pages, err := collectPages(workDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftoppm не создал ни одной страницы из %s", pdfPath)
	}

	return pages, nil
}

// sofficeArgs строит аргументы запуска LibreOffice для конвертации в PDF.
func sofficeArgs(inputPath, outDir string) []string {
	return []string{
		"--headless",
		"--norestore",
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	}
}

// pdftoppmArgs строит аргументы запуска pdftoppm.
// 150 DPI — достаточно для видео 1080p, вдвое легче типографского 300.
func pdftoppmArgs(pdfPath, outPrefix string) []string {
	return []string{
		"-png",
		"-r", "150",
		pdfPath,
		outPrefix,
	}
}

// collectPages возвращает отсортированный список постраничных PNG.
// pdftoppm нумерует страницы с ведущими нулями (page-01.png, page-02.png),
// поэтому лексикографический порядок совпадает с порядком страниц.
func collectPages(workDir string) ([]string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", workDir, err)
	}

	var pages []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, pagePrefix+"-") && strings.HasSuffix(name, ".png") {
			pages = append(pages, filepath.Join(workDir, name))
		}
	}
	sort.Strings(pages)
	return pages, nil
}

// truncate обрезает строку до максимальной длины для логирования.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
