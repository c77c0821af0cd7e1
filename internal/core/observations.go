package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"gradebook/pkg/domain"
)

// AddObservation records a dated note about a student. An empty date means today.
func (s *Service) AddObservation(ctx context.Context, studentID, text, date string) (domain.Observation, error) {
	var created domain.Observation
	err := s.mutate(ctx, "add_observation", func(ctx context.Context) error {
		if _, ok := s.cache.Student(studentID); !ok {
			return domain.NotFoundError{Kind: domain.KindStudent, ID: studentID}
		}
		if date == "" {
			date = s.today()
		}
		obs := domain.Observation{ID: s.newID(), StudentID: studentID, Text: strings.TrimSpace(text), Date: date}
		if err := domain.Validate(domain.KindObservation, obs); err != nil {
			return err
		}
		if err := s.commit(ctx, domain.Put(domain.TableObservations, obs)); err != nil {
			return err
		}
		created = obs
		return nil
	}, zap.String("student_id", studentID))
	return created, err
}

// RemoveObservation deletes one observation.
func (s *Service) RemoveObservation(ctx context.Context, id string) error {
	return s.mutate(ctx, "remove_observation", func(ctx context.Context) error {
		if _, ok := s.cache.Observation(id); !ok {
			return domain.NotFoundError{Kind: domain.KindObservation, ID: id}
		}
		return s.commit(ctx, domain.Delete(domain.TableObservations, id))
	}, zap.String("observation_id", id))
}
