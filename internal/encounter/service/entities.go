package service

import (
	"context"
	"strings"

	"github.com/louisbranch/digivice/internal/encounter/domain"
	"github.com/louisbranch/digivice/internal/encounter/storage"
	"github.com/louisbranch/digivice/internal/platform/errors"
)

// Entity sheets live outside any encounter and are edited between
// sessions, so their writes skip the aggregate's version protocol.

// PutTamer stores a tamer sheet.
func (s *Service) PutTamer(ctx context.Context, tamer domain.Tamer) error {
	if strings.TrimSpace(tamer.ID) == "" || strings.TrimSpace(tamer.Name) == "" {
		return errors.New(errors.CodeResponseInvalid, "tamer id and name are required")
	}
	if err := s.store.PutTamer(ctx, tamer); err != nil {
		return errors.Wrap(errors.CodeStorage, "put tamer", err)
	}
	return nil
}

// GetTamer returns one tamer sheet.
func (s *Service) GetTamer(ctx context.Context, id string) (domain.Tamer, error) {
	tamer, err := s.store.GetTamer(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Tamer{}, errors.New(errors.CodeTamerNotFound, "tamer not found")
		}
		return domain.Tamer{}, errors.Wrap(errors.CodeStorage, "get tamer", err)
	}
	return tamer, nil
}

// ListTamers returns every tamer sheet.
func (s *Service) ListTamers(ctx context.Context) ([]domain.Tamer, error) {
	tamers, err := s.store.ListTamers(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "list tamers", err)
	}
	return tamers, nil
}

// PutDigimon stores a digimon sheet.
func (s *Service) PutDigimon(ctx context.Context, dig domain.Digimon) error {
	if strings.TrimSpace(dig.ID) == "" || strings.TrimSpace(dig.Name) == "" {
		return errors.New(errors.CodeResponseInvalid, "digimon id and name are required")
	}
	if err := s.store.PutDigimon(ctx, dig); err != nil {
		return errors.Wrap(errors.CodeStorage, "put digimon", err)
	}
	return nil
}

// GetDigimon returns one digimon sheet.
func (s *Service) GetDigimon(ctx context.Context, id string) (domain.Digimon, error) {
	dig, err := s.store.GetDigimon(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Digimon{}, errors.New(errors.CodeDigimonNotFound, "digimon not found")
		}
		return domain.Digimon{}, errors.Wrap(errors.CodeStorage, "get digimon", err)
	}
	return dig, nil
}

// ListDigimon returns every digimon sheet.
func (s *Service) ListDigimon(ctx context.Context) ([]domain.Digimon, error) {
	digimon, err := s.store.ListDigimon(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "list digimon", err)
	}
	return digimon, nil
}

// PutEvolutionLine stores an evolution line.
func (s *Service) PutEvolutionLine(ctx context.Context, line domain.EvolutionLine) error {
	if strings.TrimSpace(line.ID) == "" {
		return errors.New(errors.CodeResponseInvalid, "evolution line id is required")
	}
	if line.CurrentStageIndex < 0 || (len(line.Chain) > 0 && line.CurrentStageIndex >= len(line.Chain)) {
		return errors.New(errors.CodeChainIndexInvalid, "current stage index out of range")
	}
	if err := s.store.PutEvolutionLine(ctx, line); err != nil {
		return errors.Wrap(errors.CodeStorage, "put evolution line", err)
	}
	return nil
}

// GetEvolutionLine returns one evolution line.
func (s *Service) GetEvolutionLine(ctx context.Context, id string) (domain.EvolutionLine, error) {
	line, err := s.store.GetEvolutionLine(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.EvolutionLine{}, errors.New(errors.CodeEvolutionLineNotFound, "evolution line not found")
		}
		return domain.EvolutionLine{}, errors.Wrap(errors.CodeStorage, "get evolution line", err)
	}
	return line, nil
}

// ListEvolutionLines returns every evolution line.
func (s *Service) ListEvolutionLines(ctx context.Context) ([]domain.EvolutionLine, error) {
	lines, err := s.store.ListEvolutionLines(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "list evolution lines", err)
	}
	return lines, nil
}
