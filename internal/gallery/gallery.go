// Package gallery manages event photo and video galleries. Media files live
// in external storage; the database keeps their URLs.
package gallery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"volunteerledger/internal/auth"
	"volunteerledger/internal/store"
)

var (
	ErrValidation = errors.New("invalid gallery request")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")

	ErrStorageUnavailable = errors.New("media storage not configured")
)

// MaxFilesPerUpload bounds one upload request.
const MaxFilesPerUpload = 10

type MediaType string

const (
	Photo MediaType = "photo"
	Video MediaType = "video"
)

var allowedTypes = map[string]MediaType{
	"image/jpeg":      Photo,
	"image/png":       Photo,
	"image/gif":       Photo,
	"video/mp4":       Video,
	"video/quicktime": Video,
}

// resourceType is the storage resource class for a media type.
func (m MediaType) resourceType() string {
	if m == Video {
		return "video"
	}
	return "image"
}

// Storage keeps the media bytes.
type Storage interface {
	Upload(ctx context.Context, file io.Reader, resourceType string) (url, publicID string, err error)
	Destroy(ctx context.Context, publicID, resourceType string) error
}

type Gallery struct {
	ID            string    `json:"gallery_id"`
	EventID       string    `json:"event_id"`
	EventName     string    `json:"event_name,omitempty"`
	Title         string    `json:"title"`
	CreatedBy     string    `json:"created_by"`
	CreatedByName string    `json:"created_by_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	MediaCount    int       `json:"media_count"`
}

type Media struct {
	ID             string    `json:"media_id"`
	GalleryID      string    `json:"gallery_id"`
	UploadedBy     string    `json:"uploaded_by"`
	UploadedByName string    `json:"uploaded_by_name,omitempty"`
	Type           MediaType `json:"media_type"`
	URL            string    `json:"url"`
	Description    string    `json:"description"`
	UploadedAt     time.Time `json:"upload_date"`
	publicID       string
}

// File is one file of an upload request.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	Description string
}

type Service struct {
	db       *store.DB
	storage  Storage
	log      *zap.Logger
	maxBytes int64
}

// NewService creates a gallery service. storage may be nil, in which case
// uploads fail with ErrStorageUnavailable.
func NewService(db *store.DB, storage Storage, maxBytes int64, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, storage: storage, log: log, maxBytes: maxBytes}
}

// Create adds an empty gallery for an existing event.
func (s *Service) Create(ctx context.Context, p auth.Principal, eventID, title string) (Gallery, error) {
	if !p.Role.CanManageContent() {
		return Gallery{}, fmt.Errorf("%w: role %s cannot create galleries", ErrForbidden, p.Role)
	}
	title = strings.TrimSpace(title)
	if eventID == "" || title == "" {
		return Gallery{}, fmt.Errorf("%w: event id and title are required", ErrValidation)
	}

	var eventName string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM events WHERE id = ?`, eventID).Scan(&eventName)
	if errors.Is(err, sql.ErrNoRows) {
		return Gallery{}, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if err != nil {
		return Gallery{}, fmt.Errorf("check event: %w", err)
	}

	g := Gallery{
		ID:        uuid.NewString(),
		EventID:   eventID,
		EventName: eventName,
		Title:     title,
		CreatedBy: p.UserID,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO galleries (id, event_id, title, created_by, created_at) VALUES (?, ?, ?, ?, ?)
	`, g.ID, g.EventID, g.Title, g.CreatedBy, g.CreatedAt)
	if err != nil {
		return Gallery{}, fmt.Errorf("insert gallery: %w", err)
	}
	s.log.Info("gallery created", zap.String("gallery_id", g.ID), zap.String("event_id", eventID))
	return g, nil
}

// Upload stores every file externally, then records all media rows in one
// transaction. If recording fails the stored files are removed again.
func (s *Service) Upload(ctx context.Context, p auth.Principal, galleryID string, files []File) ([]Media, error) {
	if !p.Role.CanManageContent() {
		return nil, fmt.Errorf("%w: role %s cannot upload media", ErrForbidden, p.Role)
	}
	if len(files) == 0 || len(files) > MaxFilesPerUpload {
		return nil, fmt.Errorf("%w: between 1 and %d files required", ErrValidation, MaxFilesPerUpload)
	}
	types := make([]MediaType, len(files))
	for i, f := range files {
		mt, ok := allowedTypes[strings.ToLower(f.ContentType)]
		if !ok {
			return nil, fmt.Errorf("%w: %s has unsupported type %q", ErrValidation, f.Name, f.ContentType)
		}
		if s.maxBytes > 0 && f.Size > s.maxBytes {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrValidation, f.Name, s.maxBytes)
		}
		types[i] = mt
	}
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM galleries WHERE id = ?`, galleryID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: gallery %s", ErrNotFound, galleryID)
	}
	if err != nil {
		return nil, fmt.Errorf("check gallery: %w", err)
	}

	now := time.Now().UTC()
	media := make([]Media, 0, len(files))
	for i, f := range files {
		url, publicID, err := s.storage.Upload(ctx, f.Body, types[i].resourceType())
		if err != nil {
			s.cleanup(media)
			return nil, fmt.Errorf("store %s: %w", f.Name, err)
		}
		media = append(media, Media{
			ID:          uuid.NewString(),
			GalleryID:   galleryID,
			UploadedBy:  p.UserID,
			Type:        types[i],
			URL:         url,
			Description: strings.TrimSpace(f.Description),
			UploadedAt:  now,
			publicID:    publicID,
		})
	}

	err = s.db.WithTx(ctx, func(tx *store.Tx) error {
		for _, m := range media {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO media (id, gallery_id, uploaded_by, media_type, url, public_id, description, uploaded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, m.ID, m.GalleryID, m.UploadedBy, string(m.Type), m.URL, m.publicID, m.Description, m.UploadedAt); err != nil {
				return fmt.Errorf("insert media: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.cleanup(media)
		return nil, err
	}
	s.log.Info("media uploaded", zap.String("gallery_id", galleryID), zap.Int("files", len(media)))
	return media, nil
}

// cleanup removes stored files that never made it into the database.
func (s *Service) cleanup(media []Media) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, m := range media {
		if err := s.storage.Destroy(ctx, m.publicID, m.Type.resourceType()); err != nil {
			s.log.Warn("orphaned media not removed", zap.String("public_id", m.publicID), zap.Error(err))
		}
	}
}

// Detail is a gallery with its media, newest first.
type Detail struct {
	Gallery Gallery `json:"gallery"`
	Media   []Media `json:"media"`
}

func (s *Service) Get(ctx context.Context, galleryID string) (Detail, error) {
	var d Detail
	err := s.db.QueryRowContext(ctx, `
		SELECT g.id, g.event_id, COALESCE(e.name, ''), g.title, g.created_by, COALESCE(u.name, ''), g.created_at
		FROM galleries g
		LEFT JOIN events e ON g.event_id = e.id
		LEFT JOIN users u ON g.created_by = u.id
		WHERE g.id = ?
	`, galleryID).Scan(&d.Gallery.ID, &d.Gallery.EventID, &d.Gallery.EventName, &d.Gallery.Title,
		&d.Gallery.CreatedBy, &d.Gallery.CreatedByName, &d.Gallery.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Detail{}, fmt.Errorf("%w: gallery %s", ErrNotFound, galleryID)
	}
	if err != nil {
		return Detail{}, fmt.Errorf("get gallery: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.gallery_id, m.uploaded_by, COALESCE(u.name, ''), m.media_type, m.url, m.description, m.uploaded_at
		FROM media m
		LEFT JOIN users u ON m.uploaded_by = u.id
		WHERE m.gallery_id = ?
		ORDER BY m.uploaded_at DESC, m.id
	`, galleryID)
	if err != nil {
		return Detail{}, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()
	d.Media = []Media{}
	for rows.Next() {
		var m Media
		var typ string
		if err := rows.Scan(&m.ID, &m.GalleryID, &m.UploadedBy, &m.UploadedByName, &typ, &m.URL, &m.Description, &m.UploadedAt); err != nil {
			return Detail{}, fmt.Errorf("scan media: %w", err)
		}
		m.Type = MediaType(typ)
		d.Media = append(d.Media, m)
	}
	if err := rows.Err(); err != nil {
		return Detail{}, err
	}
	d.Gallery.MediaCount = len(d.Media)
	return d, nil
}

// ListByEvent returns an event's galleries with media counts, newest first.
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]Gallery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.event_id, g.title, g.created_by, COALESCE(u.name, ''), g.created_at, COUNT(m.id)
		FROM galleries g
		LEFT JOIN users u ON g.created_by = u.id
		LEFT JOIN media m ON m.gallery_id = g.id
		WHERE g.event_id = ?
		GROUP BY g.id, g.event_id, g.title, g.created_by, u.name, g.created_at
		ORDER BY g.created_at DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list galleries: %w", err)
	}
	defer rows.Close()

	out := []Gallery{}
	for rows.Next() {
		var g Gallery
		if err := rows.Scan(&g.ID, &g.EventID, &g.Title, &g.CreatedBy, &g.CreatedByName, &g.CreatedAt, &g.MediaCount); err != nil {
			return nil, fmt.Errorf("scan gallery: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
