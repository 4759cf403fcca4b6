// Пакет uploadstore — операции с физическими файлами хранилища.
// Раскладка: {root}/{feature}/YYYY/MM/DD/{id}{ext}, где дата-партиция
// выводится из момента сохранения, а id генерируется на каждый вызов.
// Запись атомарна: temp файл → fsync → rename; читатели никогда
// не видят частично записанный файл.
package uploadstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slidecast-io/slidecast/internal/domain/model"
)

// Ошибки хранилища. Обработчики транслируют их в HTTP-коды,
// остальные ошибки считаются StorageFailure (500).
var (
	// ErrUnsupportedType — расширение отсутствует в белом списке.
	ErrUnsupportedType = errors.New("тип файла не поддерживается")
	// ErrPayloadTooLarge — размер превышает настроенный максимум.
	ErrPayloadTooLarge = errors.New("размер файла превышает максимум")
	// ErrNotFound — файл не найден или путь выходит за корень хранилища.
	ErrNotFound = errors.New("файл не найден")
)

// TmpSuffix — суффикс временных файлов незавершённой записи.
// Файлы с этим суффиксом невидимы для Open/List и убираются sweep-ом.
const TmpSuffix = ".tmp"

// Store — файловое хранилище с дата-партиционированием.
// Безопасен для конкурентного использования: идентификаторы уникальны
// на каждый вызов, два сохранения никогда не целятся в один путь,
// создание партиций идемпотентно (MkdirAll).
type Store struct {
	// root — корневая директория хранилища (SC_DATA_DIR + namespace)
	root string
	// maxFileSize — максимальный размер файла в байтах
	maxFileSize int64
}

// New создаёт Store. Создаёт корневую директорию, если она не существует.
func New(root string, maxFileSize int64) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать корень хранилища %s: %w", root, err)
	}
	return &Store{root: root, maxFileSize: maxFileSize}, nil
}

// Root возвращает корневую директорию хранилища.
func (s *Store) Root() string {
	return s.root
}

// MaxFileSize возвращает настроенный максимальный размер файла.
func (s *Store) MaxFileSize() int64 {
	return s.maxFileSize
}

// Save сохраняет поток в партицию {feature}/YYYY/MM/DD под свежим id.
// Расширение declaredFilename проверяется по белому списку до любых
// операций с диском. Размер контролируется в процессе записи: при
// превышении лимита temp файл удаляется, в финальном пути ничего
// не появляется.
func (s *Store) Save(feature string, reader io.Reader, declaredFilename string) (*model.Descriptor, error) {
	category, ok := model.CategoryForFilename(declaredFilename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(declaredFilename))
	}

	now := time.Now().UTC()
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	ext := strings.ToLower(filepath.Ext(declaredFilename))

	relPath := filepath.Join(feature, datePartition(now), id+ext)
	fullPath := filepath.Join(s.root, relPath)

	// Партиция создаётся идемпотентно: конкурентные загрузки одного дня
	// не конфликтуют между собой.
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания партиции: %w", err)
	}

	size, err := s.writeAtomic(fullPath, reader)
	if err != nil {
		return nil, err
	}

	return &model.Descriptor{
		ID:               id,
		OriginalFilename: declaredFilename,
		RelativePath:     filepath.ToSlash(relPath),
		Category:         category,
		ContentType:      model.ContentTypeForFilename(declaredFilename),
		Size:             size,
		StoredAt:         now,
	}, nil
}

// SaveSibling сохраняет производный файл рядом с уже существующим:
// тот же id и та же партиция, что у relPath, но расширение siblingExt
// (с точкой). Используется для артефактов, привязанных к исходному
// файлу, например субтитров рядом с аудиодорожкой. Расширение проходит
// тот же белый список, что и при обычной загрузке.
func (s *Store) SaveSibling(relPath string, reader io.Reader, siblingExt string) (*model.Descriptor, error) {
	category, ok := model.CategoryForFilename(siblingExt)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, siblingExt)
	}

	fullPath, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("ошибка stat файла %s: %w", relPath, err)
	}

	origExt := filepath.Ext(fullPath)
	id := strings.TrimSuffix(filepath.Base(fullPath), origExt)
	siblingFull := strings.TrimSuffix(fullPath, origExt) + siblingExt
	siblingRel := strings.TrimSuffix(relPath, origExt) + siblingExt

	size, err := s.writeAtomic(siblingFull, reader)
	if err != nil {
		return nil, err
	}

	return &model.Descriptor{
		ID:           id,
		RelativePath: filepath.ToSlash(siblingRel),
		Category:     category,
		ContentType:  model.ContentTypeForFilename(siblingExt),
		Size:         size,
		StoredAt:     time.Now().UTC(),
	}, nil
}

// writeAtomic пишет поток в fullPath через temp файл → fsync → rename,
// контролируя лимит размера в процессе записи. При любой ошибке temp
// файл удаляется, в финальном пути ничего не появляется.
func (s *Store) writeAtomic(fullPath string, reader io.Reader) (int64, error) {
	tmpPath := fullPath + TmpSuffix

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Копируем не больше лимита + 1 байт: лишний байт означает превышение.
	size, err := io.Copy(f, io.LimitReader(reader, s.maxFileSize+1))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if size > s.maxFileSize {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: лимит %d байт", ErrPayloadTooLarge, s.maxFileSize)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}

// Open открывает файл для чтения по относительному пути.
// Путь, выходящий за корень хранилища (сегменты "..", абсолютные пути),
// трактуется как ErrNotFound, а не как отдельный класс ошибок.
// Вызывающий код обязан закрыть файл.
func (s *Store) Open(relPath string) (*os.File, os.FileInfo, error) {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", relPath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка stat файла %s: %w", relPath, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
	}

	return f, info, nil
}

// Delete удаляет файл и подчищает опустевшие родительские директории
// вверх по дереву до корня хранилища (сам корень не удаляется).
// Отсутствующий файл или путь вне корня — ErrNotFound.
func (s *Store) Delete(relPath string) error {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return fmt.Errorf("ошибка stat файла %s: %w", relPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotFound, relPath)
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("ошибка удаления файла %s: %w", relPath, err)
	}

	s.pruneEmptyDirs(filepath.Dir(fullPath))
	return nil
}

// List обходит дерево хранилища и возвращает страницу дескрипторов
// плюс общее число найденных файлов. Порядок — порядок обхода
// директорий (os.ReadDir сортирует по имени): дата-партиции по
// возрастанию, затем имена файлов. Стабилен на неизменном дереве.
//
// Срез — снапшот файловой системы на момент вызова: файл, записанный
// во время обхода, может попасть или не попасть в результат
// (документированное нелинеаризуемое чтение).
//
// maxDepth ограничивает глубину спуска ниже корня хранилища и защищает
// от случайной рекурсии в посторонние деревья на разделяемом томе.
func (s *Store) List(limit, offset, maxDepth int) ([]*model.Descriptor, int, error) {
	var page []*model.Descriptor
	total := 0

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			// Недоступные директории пропускаем, обход продолжается.
			if os.IsNotExist(err) || os.IsPermission(err) {
				return nil
			}
			return err
		}

		for _, entry := range entries {
			if entry.IsDir() {
				if depth < maxDepth {
					if err := walk(filepath.Join(dir, entry.Name()), depth+1); err != nil {
						return err
					}
				}
				continue
			}
			if strings.HasSuffix(entry.Name(), TmpSuffix) {
				continue
			}

			if total >= offset && len(page) < limit {
				info, err := entry.Info()
				if err != nil {
					continue
				}
				fullPath := filepath.Join(dir, entry.Name())
				rel, err := filepath.Rel(s.root, fullPath)
				if err != nil {
					continue
				}
				page = append(page, descriptorFromEntry(filepath.ToSlash(rel), entry.Name(), info))
			}
			total++
		}
		return nil
	}

	if err := walk(s.root, 0); err != nil {
		return nil, 0, fmt.Errorf("ошибка обхода хранилища: %w", err)
	}

	return page, total, nil
}

// resolve преобразует относительный путь в абсолютный с проверкой,
// что результат остаётся внутри корня хранилища. Любая попытка выхода
// (включая "../" и абсолютные пути) — ErrNotFound, без частичной
// санитизации.
func (s *Store) resolve(relPath string) (string, error) {
	if relPath == "" || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, relPath)
	}

	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, relPath)
	}

	fullPath := filepath.Join(s.root, cleaned)

	// Страховка от краевых случаев Clean: итоговый путь обязан лежать
	// строго под корнем.
	rel, err := filepath.Rel(s.root, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, relPath)
	}

	return fullPath, nil
}

// pruneEmptyDirs удаляет опустевшие директории вверх по дереву,
// останавливаясь на первом непустом уровне или на корне хранилища.
func (s *Store) pruneEmptyDirs(dir string) {
	for dir != s.root {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// datePartition возвращает сегмент пути YYYY/MM/DD для указанного времени.
func datePartition(t time.Time) string {
	return filepath.Join(
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
	)
}

// descriptorFromEntry строит дескриптор из записи обхода.
// Оригинальное имя не хранится на диске, поэтому в листинге пустое;
// id — имя файла без расширения.
func descriptorFromEntry(relPath, name string, info os.FileInfo) *model.Descriptor {
	ext := filepath.Ext(name)
	category, ok := model.CategoryForFilename(name)
	if !ok {
		category = model.CategoryOther
	}
	return &model.Descriptor{
		ID:           strings.TrimSuffix(name, ext),
		RelativePath: relPath,
		Category:     category,
		ContentType:  model.ContentTypeForFilename(name),
		Size:         info.Size(),
		StoredAt:     info.ModTime().UTC(),
	}
}
