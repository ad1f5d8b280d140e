package explorer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxFolderNameLength = 120

type FolderService interface {
	List(ctx context.Context, userID uint64) ([]models.Folder, error)
	Create(ctx context.Context, actor audit.Actor, name string) (*models.Folder, error)
	// Delete 删除文件夹，其中的文件移回根目录
	Delete(ctx context.Context, actor audit.Actor, folderID uint64) error
}

type folderService struct {
	folderRepo         repositories.FolderRepository
	fileRepo           repositories.FileRepository
	transactionManager repositories.TransactionManager
	audit              audit.Recorder
}

var _ FolderService = (*folderService)(nil)

func NewFolderService(
	folderRepo repositories.FolderRepository,
	fileRepo repositories.FileRepository,
	transactionManager repositories.TransactionManager,
	recorder audit.Recorder,
) FolderService {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &folderService{
		folderRepo:         folderRepo,
		fileRepo:           fileRepo,
		transactionManager: transactionManager,
		audit:              recorder,
	}
}

func (s *folderService) List(ctx context.Context, userID uint64) ([]models.Folder, error) {
	folders, err := s.folderRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("folder service: list: %w", err)
	}
	return folders, nil
}

func (s *folderService) Create(ctx context.Context, actor audit.Actor, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxFolderNameLength {
		return nil, fmt.Errorf("folder service: invalid name: %w", xerr.ErrValidationFailed)
	}

	folder := &models.Folder{OwnerID: actor.UserID, Name: name}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("folder service: create: %w", err)
	}

	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionFolderCreate,
		TargetType: audit.TargetFolder,
		TargetID:   audit.ID(folder.ID),
		Metadata:   map[string]any{"name": folder.Name},
	})
	return folder, nil
}

func (s *folderService) Delete(ctx context.Context, actor audit.Actor, folderID uint64) error {
	folder, err := s.folderRepo.FindByIDAndOwner(ctx, folderID, actor.UserID)
	if err != nil {
		return fmt.Errorf("folder service: %w", err)
	}

	err = s.transactionManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.fileRepo.WithTx(tx).DetachFolder(ctx, folder.ID); err != nil {
			return err
		}
		return s.folderRepo.WithTx(tx).Delete(ctx, folder.ID)
	})
	if err != nil {
		logger.Error("Delete: 删除文件夹失败", zap.Uint64("folderID", folder.ID), zap.Error(err))
		return fmt.Errorf("folder service: delete: %w", err)
	}

	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionFolderDelete,
		TargetType: audit.TargetFolder,
		TargetID:   audit.ID(folder.ID),
		Metadata:   map[string]any{"name": folder.Name},
	})
	return nil
}
