// Пакет video — сборка видеороликов из изображений и аудиодорожек
// внешним ffmpeg. Каждое изображение показывается заданное время,
// звук накладывается одной дорожкой. Кодирование целиком делегируется
// ffmpeg, здесь только подготовка входов и аргументов.
package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Segment — один кадр ролика: изображение и длительность показа.
type Segment struct {
	ImagePath string
	Duration  time.Duration
}

// Compositor — сборщик видео на базе ffmpeg.
type Compositor struct {
	ffmpegBin string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewCompositor создаёт сборщик видео.
func NewCompositor(ffmpegBin string, timeout time.Duration, logger *slog.Logger) *Compositor {
	return &Compositor{
		ffmpegBin: ffmpegBin,
		timeout:   timeout,
		logger:    logger.With(slog.String("component", "compositor")),
	}
}

// Compose собирает mp4 из сегментов и аудиодорожки audioPath
// (пустой audioPath — ролик без звука). Непустой subtitlePath —
// SRT-файл, вжигаемый в кадры фильтром subtitles. Результат пишется
// в outPath.
func (c *Compositor) Compose(ctx context.Context, segments []Segment, audioPath, subtitlePath, outPath string) error {
	if len(segments) == 0 {
		return fmt.Errorf("нет ни одного сегмента для сборки")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	listPath := filepath.Join(filepath.Dir(outPath), "concat.txt")
	if err := os.WriteFile(listPath, []byte(concatList(segments)), 0o640); err != nil {
		return fmt.Errorf("ошибка записи списка concat: %w", err)
	}
	defer os.Remove(listPath)

	args := ffmpegArgs(listPath, audioPath, subtitlePath, outPath)

	cmd := exec.CommandContext(ctx, c.ffmpegBin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("ffmpeg завершился ошибкой",
			slog.Int("segments", len(segments)),
			slog.String("output", tail(string(out), 1024)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("сборка видео: %w", err)
	}

	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("ffmpeg не создал файл %s: %w", outPath, err)
	}

	return nil
}

// concatList формирует файл для демультиплексора concat.
// Последний кадр дублируется без duration: ffmpeg игнорирует
// длительность последней записи, повтор заставляет её учесть.
func concatList(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(seg.ImagePath))
		fmt.Fprintf(&b, "duration %s\n", formatSeconds(seg.Duration))
	}
	last := segments[len(segments)-1]
	fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(last.ImagePath))
	return b.String()
}

// ffmpegArgs строит аргументы запуска ffmpeg.
// yuv420p и чётные размеры кадра обязательны для совместимости
// с большинством плееров; субтитры вжигаются после масштабирования.
func ffmpegArgs(listPath, audioPath, subtitlePath, outPath string) []string {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	}
	vf := "scale=trunc(iw/2)*2:trunc(ih/2)*2"
	if subtitlePath != "" {
		vf += ",subtitles=" + escapeFilterPath(subtitlePath)
	}
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-vf", vf,
	)
	if audioPath != "" {
		args = append(args, "-c:a", "aac", "-shortest")
	}
	return append(args, outPath)
}

// escapeConcatPath экранирует одинарные кавычки в путях для concat-списка.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

// escapeFilterPath экранирует путь для значения опции фильтра
// в filtergraph: спецсимволы графа фильтров экранируются обратным слэшем.
func escapeFilterPath(p string) string {
	return filterPathReplacer.Replace(p)
}

var filterPathReplacer = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`:`, `\:`,
	`,`, `\,`,
	`;`, `\;`,
	`[`, `\[`,
	`]`, `\]`,
)

// formatSeconds переводит длительность в секунды с точностью до миллисекунд.
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// tail возвращает последние max байт строки: у ffmpeg причина ошибки
// почти всегда в конце вывода.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max:]
}
