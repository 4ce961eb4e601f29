package services

import (
	"context"
	"errors"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/session"
)

// ParameterService validates the parameter form and keeps its draft
type ParameterService struct {
	logger *logging.Logger
	store  *session.Store
}

// NewParameterService creates a new ParameterService
func NewParameterService(logger *logging.Logger, store *session.Store) *ParameterService {
	return &ParameterService{
		logger: logger,
		store:  store,
	}
}

// Validate reports every invalid field. It never fails.
func (s *ParameterService) Validate(params *models.SimulationParameters) *models.ValidationResponse {
	err := params.Validate()
	if err == nil {
		return &models.ValidationResponse{Valid: true}
	}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return &models.ValidationResponse{Valid: false, Errors: verr.Fields}
	}
	return &models.ValidationResponse{Valid: false, Errors: map[string]string{"_": err.Error()}}
}

// SaveDraft stores the form as typed. Drafts may be invalid; they are
// checked only when submitted.
func (s *ParameterService) SaveDraft(ctx context.Context, params *models.SimulationParameters) error {
	if err := s.store.SaveDraftE(ctx, *params); err != nil {
		s.logger.Error("Failed to save parameter draft", "error", err)
		return storageError("save draft", err)
	}
	return nil
}

// LoadDraft returns the stored draft, or the defaults when none is stored.
// The bool reports whether a draft was found.
func (s *ParameterService) LoadDraft(ctx context.Context) (*models.SimulationParameters, bool, error) {
	params, err := s.store.LoadDraftE(ctx)
	if errors.Is(err, session.ErrNotFound) {
		defaults := models.DefaultParameters()
		return &defaults, false, nil
	}
	if err != nil {
		s.logger.Error("Failed to load parameter draft", "error", err)
		return nil, false, storageError("load draft", err)
	}
	return params, true, nil
}

// DeleteDraft discards the stored draft
func (s *ParameterService) DeleteDraft(ctx context.Context) error {
	if err := s.store.DeleteDraftE(ctx); err != nil {
		return storageError("delete draft", err)
	}
	return nil
}
