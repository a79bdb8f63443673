package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"docguard/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &DocumentModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveDocument stores or replaces a document record.
func (s *GormStore) SaveDocument(d domain.Document) error {
	model, err := toDocumentModel(d)
	if err != nil {
		return err
	}
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Document{}, false, nil
	}
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("get document: %w", err)
	}
	doc, err := fromDocumentModel(model)
	if err != nil {
		return domain.Document{}, false, err
	}
	return doc, true, nil
}

// ListDocuments returns the owner's documents, newest first.
func (s *GormStore) ListDocuments(ownerID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]domain.Document, 0, len(models))
	for _, model := range models {
		doc, err := fromDocumentModel(model)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// UpdateDocument applies a merge-patch inside a transaction. Unknown ids
// fail with ErrDocumentNotFound.
func (s *GormStore) UpdateDocument(id string, patch DocumentPatch) (domain.Document, error) {
	var updated domain.Document
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model DocumentModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDocumentNotFound
			}
			return fmt.Errorf("load document: %w", err)
		}
		doc, err := fromDocumentModel(model)
		if err != nil {
			return err
		}
		applyPatch(&doc, patch)
		doc.UpdatedAt = time.Now().UTC()
		next, err := toDocumentModel(doc)
		if err != nil {
			return err
		}
		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		updated = doc
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	return updated, nil
}

// SaveUser registers or replaces a user profile.
func (s *GormStore) SaveUser(u domain.User) error {
	model := UserModel{
		ID:        u.ID,
		Email:     u.Email,
		Language:  string(u.Language),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.First(&model, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("get user by email: %w", err)
	}
	return fromUserModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("get user: %w", err)
	}
	return fromUserModel(model), true, nil
}

// UpdateUserLanguage sets the user's language preference.
func (s *GormStore) UpdateUserLanguage(id string, language domain.Language) (domain.User, error) {
	var updated domain.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model UserModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		model.Language = string(language)
		model.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&model).Error; err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		updated = fromUserModel(model)
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

func toDocumentModel(d domain.Document) (DocumentModel, error) {
	model := DocumentModel{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		FileName:     d.FileName,
		StorageKey:   d.StorageKey,
		Status:       string(d.Status),
		ErrorMessage: d.ErrorMessage,
		SizeBytes:    d.SizeBytes,
		Language:     string(d.Language),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.Analysis != nil {
		raw, err := json.Marshal(d.Analysis)
		if err != nil {
			return DocumentModel{}, fmt.Errorf("encode analysis: %w", err)
		}
		model.Analysis = datatypes.JSON(raw)
	}
	return model, nil
}

func fromDocumentModel(model DocumentModel) (domain.Document, error) {
	doc := domain.Document{
		ID:           model.ID,
		OwnerID:      model.OwnerID,
		FileName:     model.FileName,
		StorageKey:   model.StorageKey,
		Status:       domain.DocumentStatus(model.Status),
		ErrorMessage: model.ErrorMessage,
		SizeBytes:    model.SizeBytes,
		Language:     domain.Language(model.Language),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
	if len(model.Analysis) > 0 {
		var analysis domain.AnalysisResult
		if err := json.Unmarshal(model.Analysis, &analysis); err != nil {
			return domain.Document{}, fmt.Errorf("decode analysis: %w", err)
		}
		doc.Analysis = &analysis
	}
	return doc, nil
}

func fromUserModel(model UserModel) domain.User {
	return domain.User{
		ID:        model.ID,
		Email:     model.Email,
		Language:  domain.Language(model.Language),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
