package uploadstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slidecast-io/slidecast/internal/domain/model"
)

const testMaxSize = 1 << 20 // 1 МБ для тестов

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "slidecast"), testMaxSize)
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}
	return s
}

// TestNew_CreatesRoot проверяет создание корневой директории.
func TestNew_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data", "slidecast")

	s, err := New(root, testMaxSize)
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}
	if s.Root() != root {
		t.Errorf("ожидался корень %s, получен %s", root, s.Root())
	}

	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("корень не создан: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("корень не является директорией")
	}
}

// TestSave_Roundtrip проверяет, что Save + Open возвращает идентичное содержимое.
func TestSave_Roundtrip(t *testing.T) {
	s := newTestStore(t)
	content := []byte("картинка из десяти байт")

	desc, err := s.Save("upload", bytes.NewReader(content), "a.png")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if desc.Category != model.CategoryImage {
		t.Errorf("категория: ожидалось image, получено %s", desc.Category)
	}
	if desc.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), desc.Size)
	}

	// Путь соответствует раскладке upload/YYYY/MM/DD/{id}.png за сегодня
	now := time.Now().UTC()
	want := regexp.MustCompile(fmt.Sprintf(`^upload/%04d/%02d/%02d/[0-9a-f]{32}\.png$`,
		now.Year(), int(now.Month()), now.Day()))
	if !want.MatchString(desc.RelativePath) {
		t.Errorf("путь %s не соответствует раскладке дата-партиции", desc.RelativePath)
	}

	f, info, err := s.Open(desc.RelativePath)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer f.Close()

	if info.Size() != int64(len(content)) {
		t.Errorf("stat размер: ожидалось %d, получено %d", len(content), info.Size())
	}

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое не совпадает с загруженным")
	}
}

// TestSave_UnsupportedType проверяет отклонение расширений вне белого списка.
func TestSave_UnsupportedType(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save("upload", bytes.NewReader([]byte("MZ")), "virus.exe")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("ожидалась ErrUnsupportedType, получено %v", err)
	}

	// Никаких артефактов на диске
	assertStoreEmpty(t, s)
}

// TestSave_PayloadTooLarge проверяет лимит размера и отсутствие частичных файлов.
func TestSave_PayloadTooLarge(t *testing.T) {
	s := newTestStore(t)
	big := bytes.Repeat([]byte("x"), testMaxSize+1)

	_, err := s.Save("upload", bytes.NewReader(big), "big.mp4")
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("ожидалась ErrPayloadTooLarge, получено %v", err)
	}

	assertStoreEmpty(t, s)
}

// TestSave_ExactLimit проверяет, что файл ровно в лимит принимается.
func TestSave_ExactLimit(t *testing.T) {
	s := newTestStore(t)
	data := bytes.Repeat([]byte("x"), testMaxSize)

	desc, err := s.Save("upload", bytes.NewReader(data), "exact.bin.zip")
	if err != nil {
		t.Fatalf("файл ровно в лимит должен приниматься: %v", err)
	}
	if desc.Size != testMaxSize {
		t.Errorf("размер: ожидалось %d, получено %d", testMaxSize, desc.Size)
	}
}

// TestSave_UniqueIDs проверяет, что идентификаторы не повторяются.
func TestSave_UniqueIDs(t *testing.T) {
	s := newTestStore(t)
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		desc, err := s.Save("upload", strings.NewReader("data"), "f.txt")
		if err != nil {
			t.Fatalf("ошибка сохранения: %v", err)
		}
		if seen[desc.ID] {
			t.Fatalf("идентификатор %s повторился", desc.ID)
		}
		seen[desc.ID] = true
	}
}

// TestSave_Concurrent проверяет конкурентные загрузки в одну партицию.
func TestSave_Concurrent(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	errCh := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Save("upload", strings.NewReader(fmt.Sprintf("data-%d", n)), "c.txt")
			if err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("конкурентная загрузка завершилась ошибкой: %v", err)
	}

	_, total, err := s.List(100, 0, 5)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if total != 20 {
		t.Errorf("ожидалось 20 файлов, получено %d", total)
	}
}

// TestSaveSibling проверяет сохранение производного файла рядом
// с исходным: тот же id и партиция, другое расширение.
func TestSaveSibling(t *testing.T) {
	s := newTestStore(t)

	audio, err := s.Save("tts", strings.NewReader("байты mp3"), "speech.mp3")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	srt := "1\n00:00:00,000 --> 00:00:01,000\nтекст\n"
	sub, err := s.SaveSibling(audio.RelativePath, strings.NewReader(srt), ".srt")
	if err != nil {
		t.Fatalf("ошибка сохранения соседнего файла: %v", err)
	}

	if sub.ID != audio.ID {
		t.Errorf("id: ожидался %s, получен %s", audio.ID, sub.ID)
	}
	want := strings.TrimSuffix(audio.RelativePath, ".mp3") + ".srt"
	if sub.RelativePath != want {
		t.Errorf("путь: ожидался %s, получен %s", want, sub.RelativePath)
	}
	if sub.Category != model.CategoryDocument {
		t.Errorf("категория: ожидалось document, получено %s", sub.Category)
	}

	f, _, err := s.Open(sub.RelativePath)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if string(data) != srt {
		t.Error("содержимое не совпадает с записанным")
	}
}

// TestSaveSibling_MissingOriginal проверяет, что рядом с отсутствующим
// файлом ничего не сохраняется.
func TestSaveSibling_MissingOriginal(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveSibling("tts/2026/01/01/deadbeef.mp3", strings.NewReader("x"), ".srt")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено %v", err)
	}
	assertStoreEmpty(t, s)
}

// TestSaveSibling_UnsupportedExt проверяет белый список расширений.
func TestSaveSibling_UnsupportedExt(t *testing.T) {
	s := newTestStore(t)

	audio, err := s.Save("tts", strings.NewReader("x"), "speech.mp3")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if _, err := s.SaveSibling(audio.RelativePath, strings.NewReader("x"), ".exe"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("ожидалась ErrUnsupportedType, получено %v", err)
	}
}

// TestOpen_NotFound проверяет поведение на отсутствующем пути.
func TestOpen_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Open("upload/2026/01/01/deadbeef.png")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestOpen_Directory проверяет, что директория трактуется как NotFound.
func TestOpen_Directory(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save("upload", strings.NewReader("x"), "a.txt"); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	_, _, err := s.Open("upload")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("директория должна давать ErrNotFound, получено %v", err)
	}
}

// TestPathTraversal проверяет, что попытки выхода за корень дают NotFound.
func TestPathTraversal(t *testing.T) {
	s := newTestStore(t)

	// Файл-приманка за пределами корня
	outside := filepath.Join(filepath.Dir(s.Root()), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o600); err != nil {
		t.Fatalf("ошибка создания файла-приманки: %v", err)
	}

	attempts := []string{
		"../secret.txt",
		"upload/../../secret.txt",
		"upload/../../../etc/passwd",
		"/etc/passwd",
		"..",
		"",
	}
	for _, p := range attempts {
		if _, _, err := s.Open(p); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q): ожидалась ErrNotFound, получено %v", p, err)
		}
		if err := s.Delete(p); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(%q): ожидалась ErrNotFound, получено %v", p, err)
		}
	}
}

// TestDelete_ThenOpen проверяет, что после удаления файл недоступен.
func TestDelete_ThenOpen(t *testing.T) {
	s := newTestStore(t)

	desc, err := s.Save("upload", strings.NewReader("данные"), "doc.pdf")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if err := s.Delete(desc.RelativePath); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if _, _, err := s.Open(desc.RelativePath); !errors.Is(err, ErrNotFound) {
		t.Fatalf("после удаления ожидалась ErrNotFound, получено %v", err)
	}

	// Повторное удаление — тоже NotFound
	if err := s.Delete(desc.RelativePath); !errors.Is(err, ErrNotFound) {
		t.Fatalf("повторное удаление: ожидалась ErrNotFound, получено %v", err)
	}
}

// TestDelete_PrunesEmptyDirs проверяет подчистку опустевших партиций.
func TestDelete_PrunesEmptyDirs(t *testing.T) {
	s := newTestStore(t)

	desc, err := s.Save("upload", strings.NewReader("x"), "one.txt")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if err := s.Delete(desc.RelativePath); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	// Вся ветка upload/YYYY/MM/DD опустела и должна исчезнуть
	if _, err := os.Stat(filepath.Join(s.Root(), "upload")); !os.IsNotExist(err) {
		t.Error("опустевшая ветка upload не подчищена")
	}

	// Корень хранилища остаётся
	if _, err := os.Stat(s.Root()); err != nil {
		t.Errorf("корень хранилища не должен удаляться: %v", err)
	}
}

// TestDelete_KeepsSiblings проверяет, что подчистка не трогает непустые директории.
func TestDelete_KeepsSiblings(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Save("upload", strings.NewReader("a"), "a.txt")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	second, err := s.Save("upload", strings.NewReader("b"), "b.txt")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if err := s.Delete(first.RelativePath); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if _, _, err := s.Open(second.RelativePath); err != nil {
		t.Errorf("соседний файл пострадал от подчистки: %v", err)
	}
}

// TestList_Pagination проверяет пагинацию и общий счётчик.
func TestList_Pagination(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 7; i++ {
		if _, err := s.Save("upload", strings.NewReader("x"), "f.txt"); err != nil {
			t.Fatalf("ошибка сохранения: %v", err)
		}
	}

	page1, total, err := s.List(3, 0, 5)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if total != 7 {
		t.Errorf("total: ожидалось 7, получено %d", total)
	}
	if len(page1) != 3 {
		t.Errorf("страница 1: ожидалось 3 элемента, получено %d", len(page1))
	}

	page2, _, err := s.List(3, 3, 5)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	page3, _, err := s.List(3, 6, 5)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if len(page2) != 3 || len(page3) != 1 {
		t.Errorf("страницы 2/3: ожидалось 3 и 1, получено %d и %d", len(page2), len(page3))
	}

	// Страницы не пересекаются
	seen := make(map[string]bool)
	for _, d := range append(append(page1, page2...), page3...) {
		if seen[d.RelativePath] {
			t.Errorf("путь %s встретился в двух страницах", d.RelativePath)
		}
		seen[d.RelativePath] = true
	}
}

// TestList_Stable проверяет идемпотентность листинга на неизменном дереве.
func TestList_Stable(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"a.png", "b.mp3", "c.pdf"} {
		if _, err := s.Save("upload", strings.NewReader("x"), name); err != nil {
			t.Fatalf("ошибка сохранения: %v", err)
		}
	}

	first, _, err := s.List(100, 0, 5)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	second, _, err := s.List(100, 0, 5)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("длины листингов различаются: %d и %d", len(first), len(second))
	}
	for i := range first {
		if first[i].RelativePath != second[i].RelativePath {
			t.Errorf("позиция %d: %s != %s", i, first[i].RelativePath, second[i].RelativePath)
		}
	}
}

// TestList_MaxDepth проверяет ограничение глубины обхода.
func TestList_MaxDepth(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save("upload", strings.NewReader("x"), "deep.txt"); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	// Раскладка feature/YYYY/MM/DD/file — файл на глубине 4
	_, total, err := s.List(100, 0, 3)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if total != 0 {
		t.Errorf("при max_depth=3 файл на глубине 4 не должен находиться, total=%d", total)
	}

	_, total, err = s.List(100, 0, 4)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if total != 1 {
		t.Errorf("при max_depth=4 ожидался 1 файл, total=%d", total)
	}
}

// TestList_SkipsTmpFiles проверяет, что незавершённые temp файлы невидимы.
func TestList_SkipsTmpFiles(t *testing.T) {
	s := newTestStore(t)

	desc, err := s.Save("upload", strings.NewReader("x"), "ok.txt")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	// Имитация незавершённой записи рядом с настоящим файлом
	dir := filepath.Dir(filepath.Join(s.Root(), filepath.FromSlash(desc.RelativePath)))
	if err := os.WriteFile(filepath.Join(dir, "half"+TmpSuffix), []byte("part"), 0o600); err != nil {
		t.Fatalf("ошибка создания temp файла: %v", err)
	}

	_, total, err := s.List(100, 0, 5)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if total != 1 {
		t.Errorf("temp файл попал в листинг, total=%d", total)
	}
}

// TestSave_FailedReaderLeavesNoArtifacts проверяет, что ошибка чтения
// источника не оставляет файла в финальном пути.
func TestSave_FailedReaderLeavesNoArtifacts(t *testing.T) {
	s := newTestStore(t)

	r := io.MultiReader(strings.NewReader("начало"), failingReader{})
	if _, err := s.Save("upload", r, "broken.txt"); err == nil {
		t.Fatal("ожидалась ошибка записи")
	}

	assertStoreEmpty(t, s)
}

// failingReader всегда возвращает ошибку чтения.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("обрыв источника")
}

// assertStoreEmpty проверяет, что в хранилище нет ни одного файла
// (включая temp артефакты).
func assertStoreEmpty(t *testing.T, s *Store) {
	t.Helper()
	err := filepath.Walk(s.Root(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			t.Errorf("в хранилище остался артефакт: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ошибка обхода: %v", err)
	}
}
