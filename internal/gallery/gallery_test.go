package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"volunteerledger/internal/testutil"
)

type memStorage struct {
	mu        sync.Mutex
	n         int
	failAt    int // 1-based upload that fails; 0 never
	uploaded  []string
	destroyed []string
}

func (m *memStorage) Upload(_ context.Context, file io.Reader, resourceType string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	if m.n == m.failAt {
		return "", "", errors.New("storage down")
	}
	if _, err := io.ReadAll(file); err != nil {
		return "", "", err
	}
	id := fmt.Sprintf("%s-%d", resourceType, m.n)
	m.uploaded = append(m.uploaded, id)
	return "https://cdn.test/" + id, id, nil
}

func (m *memStorage) Destroy(_ context.Context, publicID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = append(m.destroyed, publicID)
	return nil
}

func file(name, contentType string) File {
	return File{Name: name, ContentType: contentType, Size: 4, Body: strings.NewReader("data"), Description: "d " + name}
}

type fixture struct {
	ctx     context.Context
	fx      *testutil.Fixtures
	storage *memStorage
	svc     *Service
	mentor  testutil.User
	event   testutil.Event
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.OpenDB(t)
	fx := testutil.NewFixtures(t, db)
	mentor := fx.CreateMentor(ctx, "Mentor")
	st := &memStorage{}
	return fixture{
		ctx:     ctx,
		fx:      fx,
		storage: st,
		svc:     NewService(db, st, 1024, nil),
		mentor:  mentor,
		event:   fx.CreateEvent(ctx, "Marathon", time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), 5, mentor),
	}
}

func TestCreateUploadGet(t *testing.T) {
	f := newFixture(t)

	g, err := f.svc.Create(f.ctx, f.mentor.Principal(), f.event.ID, "Finish line")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	media, err := f.svc.Upload(f.ctx, f.mentor.Principal(), g.ID, []File{
		file("a.jpg", "image/jpeg"),
		file("b.mp4", "video/mp4"),
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(media) != 2 || media[0].Type != Photo || media[1].Type != Video {
		t.Errorf("media = %+v", media)
	}

	d, err := f.svc.Get(f.ctx, g.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if d.Gallery.EventName != "Marathon" || d.Gallery.CreatedByName != "Mentor" || len(d.Media) != 2 {
		t.Errorf("detail = %+v", d)
	}

	list, err := f.svc.ListByEvent(f.ctx, f.event.ID)
	if err != nil {
		t.Fatalf("ListByEvent failed: %v", err)
	}
	if len(list) != 1 || list[0].MediaCount != 2 {
		t.Errorf("ListByEvent = %+v", list)
	}
}

func TestCreate_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Create(f.ctx, f.mentor.Principal(), "ghost", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpload_Validation(t *testing.T) {
	f := newFixture(t)
	g, err := f.svc.Create(f.ctx, f.mentor.Principal(), f.event.ID, "x")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	big := file("big.png", "image/png")
	big.Size = 4096
	tooMany := make([]File, MaxFilesPerUpload+1)
	for i := range tooMany {
		tooMany[i] = file("f.png", "image/png")
	}

	tests := []struct {
		name    string
		files   []File
		wantErr error
	}{
		{name: "no files", wantErr: ErrValidation},
		{name: "too many", files: tooMany, wantErr: ErrValidation},
		{name: "pdf", files: []File{file("x.pdf", "application/pdf")}, wantErr: ErrValidation},
		{name: "too large", files: []File{big}, wantErr: ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Upload(f.ctx, f.mentor.Principal(), g.ID, tt.files); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(f.storage.uploaded) != 0 {
		t.Errorf("uploaded %v despite validation errors", f.storage.uploaded)
	}

	if _, err := f.svc.Upload(f.ctx, f.mentor.Principal(), "ghost", []File{file("a.png", "image/png")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown gallery err = %v", err)
	}
}

func TestUpload_StorageFailureRemovesEarlierFiles(t *testing.T) {
	f := newFixture(t)
	g, err := f.svc.Create(f.ctx, f.mentor.Principal(), f.event.ID, "x")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.storage.failAt = 2

	_, err = f.svc.Upload(f.ctx, f.mentor.Principal(), g.ID, []File{file("a.png", "image/png"), file("b.png", "image/png")})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.storage.destroyed) != 1 || f.storage.destroyed[0] != f.storage.uploaded[0] {
		t.Errorf("destroyed = %v, uploaded = %v", f.storage.destroyed, f.storage.uploaded)
	}
	if n := f.fx.Count(f.ctx, "media"); n != 0 {
		t.Errorf("media rows = %d, want 0", n)
	}
}

func TestUpload_Forbidden(t *testing.T) {
	f := newFixture(t)
	v := f.fx.CreateVolunteer(f.ctx, "V", f.mentor)
	if _, err := f.svc.Upload(f.ctx, v.Principal(), "g", []File{file("a.png", "image/png")}); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestUpload_NoStorage(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.fx.DB(), nil, 0, nil)
	if _, err := svc.Upload(f.ctx, f.mentor.Principal(), "g", []File{file("a.png", "image/png")}); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}
