// files.go — HTTP handlers файловых операций: upload, download,
// listing, delete.
package handlers

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/slidecast-io/slidecast/internal/api/errors"
	"github.com/slidecast-io/slidecast/internal/config"
	"github.com/slidecast-io/slidecast/internal/domain/model"
	"github.com/slidecast-io/slidecast/internal/service"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
)

// multipartMemoryLimit — буфер парсинга multipart в памяти; тела
// больше лимита net/http сбрасывает во временные файлы.
const multipartMemoryLimit = 32 << 20

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc   *service.UploadService
	downloadSvc *service.DownloadService
	listingSvc  *service.ListingService
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	uploadSvc *service.UploadService,
	downloadSvc *service.DownloadService,
	listingSvc *service.ListingService,
) *FilesHandler {
	return &FilesHandler{
		uploadSvc:   uploadSvc,
		downloadSvc: downloadSvc,
		listingSvc:  listingSvc,
	}
}

// uploadItem — результат загрузки одного файла из батча.
type uploadItem struct {
	OriginalFilename string            `json:"original_filename"`
	OK               bool              `json:"ok"`
	File             *model.Descriptor `json:"file,omitempty"`
	Error            *uploadItemError  `json:"error,omitempty"`
}

// uploadItemError — ошибка загрузки одного файла из батча.
type uploadItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// uploadResponse — ответ батчевой загрузки.
type uploadResponse struct {
	Items    []uploadItem `json:"items"`
	Uploaded int          `json:"uploaded"`
	Failed   int          `json:"failed"`
}

// UploadFiles обрабатывает POST /api/v1/files.
// Multipart form: одна или несколько частей files (одиночный file тоже
// принимается). Каждый файл обрабатывается независимо: отказ одного не
// отменяет остальные, результат — по записи на файл.
func (h *FilesHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		parts = r.MultipartForm.File["file"]
	}
	if len(parts) == 0 {
		errors.ValidationError(w, "Требуется хотя бы одна часть 'files' или 'file'")
		return
	}

	resp := uploadResponse{Items: make([]uploadItem, 0, len(parts))}
	for _, part := range parts {
		item := h.uploadOne(part)
		if item.OK {
			resp.Uploaded++
		} else {
			resp.Failed++
		}
		resp.Items = append(resp.Items, item)
	}

	// Частичный успех остаётся 201: итог каждого файла — в его записи.
	status := http.StatusCreated
	if resp.Uploaded == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// uploadOne загружает один файл батча и формирует запись результата.
func (h *FilesHandler) uploadOne(part *multipart.FileHeader) uploadItem {
	item := uploadItem{OriginalFilename: part.Filename}

	f, err := part.Open()
	if err != nil {
		item.Error = &uploadItemError{
			Code:    errors.CodeInternalError,
			Message: fmt.Sprintf("Ошибка чтения части multipart: %s", err.Error()),
		}
		return item
	}
	defer f.Close()

	desc, err := h.uploadSvc.Upload(service.FeatureUpload, f, part.Filename)
	if err != nil {
		item.Error = uploadErrorEntry(err)
		return item
	}

	desc.OriginalFilename = part.Filename
	item.OK = true
	item.File = desc
	return item
}

// uploadErrorEntry переводит ошибку хранилища в запись батча.
func uploadErrorEntry(err error) *uploadItemError {
	switch {
	case goerrors.Is(err, uploadstore.ErrUnsupportedType):
		return &uploadItemError{
			Code:    errors.CodeUnsupportedType,
			Message: "Расширение файла не входит в белый список",
		}
	case goerrors.Is(err, uploadstore.ErrPayloadTooLarge):
		return &uploadItemError{
			Code:    errors.CodePayloadTooLarge,
			Message: "Файл превышает допустимый размер",
		}
	default:
		return &uploadItemError{
			Code:    errors.CodeStorageFailure,
			Message: "Ошибка записи файла в хранилище",
		}
	}
}

// DownloadFile обрабатывает GET /api/v1/files/{path}.
// Range requests и If-Modified-Since делегируются http.ServeContent.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	relPath := chi.URLParam(r, "*")

	if err := h.downloadSvc.Serve(w, r, relPath); err != nil {
		if goerrors.Is(err, uploadstore.ErrNotFound) {
			errors.NotFound(w, fmt.Sprintf("Файл %s не найден", relPath))
			return
		}
		errors.StorageFailure(w, "Ошибка чтения файла из хранилища")
	}
}

// listResponse — ответ листинга.
type listResponse struct {
	Items   []*model.Descriptor `json:"items"`
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
	HasMore bool                `json:"has_more"`
}

// ListFiles обрабатывает GET /api/v1/files.
// Пагинация: limit (1..100), offset. max_depth ограничивает глубину
// обхода дерева.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	limit := config.DefaultListLimit
	offset := 0
	maxDepth := 0

	var err error
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > config.DefaultListLimit {
			errors.ValidationError(w, fmt.Sprintf("Параметр limit должен быть от 1 до %d", config.DefaultListLimit))
			return
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			errors.ValidationError(w, "Параметр offset не может быть отрицательным")
			return
		}
	}
	if v := r.URL.Query().Get("max_depth"); v != "" {
		maxDepth, err = strconv.Atoi(v)
		if err != nil || maxDepth <= 0 {
			errors.ValidationError(w, "Параметр max_depth должен быть положительным")
			return
		}
	}

	items, total, err := h.listingSvc.List(limit, offset, maxDepth)
	if err != nil {
		errors.StorageFailure(w, "Ошибка чтения дерева хранилища")
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// deleteResponse — подтверждение удаления.
type deleteResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// DeleteFile обрабатывает DELETE /api/v1/files/{path}.
// Удаление физическое и немедленное; опустевшие партиции подчищаются.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	relPath := chi.URLParam(r, "*")

	if err := h.uploadSvc.Delete(relPath); err != nil {
		if goerrors.Is(err, uploadstore.ErrNotFound) {
			errors.NotFound(w, fmt.Sprintf("Файл %s не найден", relPath))
			return
		}
		errors.StorageFailure(w, "Ошибка удаления файла")
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		Status: "deleted",
		Path:   relPath,
	})
}

// writeJSON — запись JSON-ответа со статусом.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
