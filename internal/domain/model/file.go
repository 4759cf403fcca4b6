// Пакет model — доменные модели Slidecast.
// Descriptor — единая структура описания сохранённого файла,
// возвращается во всех API-ответах файловых операций.
package model

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Category — класс файла, определяется по расширению.
type Category string

const (
	// CategoryImage — растровые и векторные изображения
	CategoryImage Category = "image"
	// CategoryDocument — документы и презентации
	CategoryDocument Category = "document"
	// CategoryVideo — видеофайлы
	CategoryVideo Category = "video"
	// CategoryAudio — аудиофайлы
	CategoryAudio Category = "audio"
	// CategoryArchive — архивы
	CategoryArchive Category = "archive"
	// CategoryOther — прочие разрешённые типы (json, xml, yaml)
	CategoryOther Category = "other"
)

// categoryByExt — белый список расширений.
// Расширение не из списка отклоняется при загрузке.
var categoryByExt = map[string]Category{
	// Изображения
	".jpg": CategoryImage, ".jpeg": CategoryImage, ".png": CategoryImage,
	".gif": CategoryImage, ".bmp": CategoryImage, ".webp": CategoryImage,
	".svg": CategoryImage, ".ico": CategoryImage,
	// Документы
	".pdf": CategoryDocument, ".doc": CategoryDocument, ".docx": CategoryDocument,
	".xls": CategoryDocument, ".xlsx": CategoryDocument, ".ppt": CategoryDocument,
	".pptx": CategoryDocument, ".txt": CategoryDocument, ".csv": CategoryDocument,
	".srt": CategoryDocument,
	// Видео
	".mp4": CategoryVideo, ".avi": CategoryVideo, ".mov": CategoryVideo,
	".wmv": CategoryVideo, ".flv": CategoryVideo, ".mkv": CategoryVideo,
	".webm": CategoryVideo,
	// Аудио
	".mp3": CategoryAudio, ".wav": CategoryAudio, ".ogg": CategoryAudio,
	".m4a": CategoryAudio, ".flac": CategoryAudio,
	// Архивы
	".zip": CategoryArchive, ".rar": CategoryArchive, ".7z": CategoryArchive,
	".tar": CategoryArchive, ".gz": CategoryArchive,
	// Прочее
	".json": CategoryOther, ".xml": CategoryOther, ".yaml": CategoryOther,
	".yml": CategoryOther,
}

// CategoryForFilename возвращает категорию файла по расширению имени.
// Второе значение false, если расширение отсутствует в белом списке.
func CategoryForFilename(filename string) (Category, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	cat, ok := categoryByExt[ext]
	return cat, ok
}

// contentTypeOverrides — типы, которых нет в системной таблице mime.
var contentTypeOverrides = map[string]string{
	".srt": "text/srt",
}

// ContentTypeForFilename возвращает MIME-тип по расширению имени.
// Для неизвестных расширений — application/octet-stream.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := contentTypeOverrides[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Descriptor — метаданные сохранённого файла.
// Путь — чистая функция даты создания и сгенерированного идентификатора:
// {feature}/YYYY/MM/DD/{id}{ext}. Файл неизменяем после сохранения.
type Descriptor struct {
	// ID — уникальный идентификатор файла (uuid hex, без дефисов)
	ID string `json:"id"`

	// OriginalFilename — имя файла при загрузке (пустое для listing,
	// оригинальное имя не хранится на диске)
	OriginalFilename string `json:"original_filename,omitempty"`

	// RelativePath — путь файла относительно корня хранилища
	RelativePath string `json:"file_path"`

	// URL — публичный URL для скачивания файла
	URL string `json:"file_url,omitempty"`

	// Category — класс файла из белого списка
	Category Category `json:"category"`

	// ContentType — MIME-тип, выведенный из расширения
	ContentType string `json:"content_type"`

	// Size — размер файла в байтах
	Size int64 `json:"file_size"`

	// StoredAt — дата и время сохранения (UTC)
	StoredAt time.Time `json:"stored_at"`
}
